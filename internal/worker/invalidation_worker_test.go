package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensepro/internal/amqp"
	"expensepro/internal/log"
)

type fakeConsumer struct {
	messages []*amqp.InvalidationMessage
	err      error
}

func (f *fakeConsumer) ConsumeInvalidations(ctx context.Context, handler func(*amqp.InvalidationMessage) error) error {
	for _, m := range f.messages {
		if err := handler(m); err != nil {
			return err
		}
	}
	return f.err
}

type fakeLists struct {
	reasons []string
}

func (f *fakeLists) Invalidate(_ context.Context, reason string) int {
	f.reasons = append(f.reasons, reason)
	return 3
}

func TestHandleInvalidationMessage(t *testing.T) {
	tests := []struct {
		name  string
		views []string
		want  int
	}{
		{"known view", []string{"expenses"}, 1},
		{"any known view", []string{"reports", "categories"}, 1},
		{"all views", nil, 1},
		{"unknown views", []string{"reports"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lists := &fakeLists{}
			w := NewInvalidationWorker(nil, lists, []string{"expenses", "categories"}, log.Discard())

			msg := amqp.NewInvalidationMessage("other", tt.views, "expense created")
			require.NoError(t, w.HandleInvalidationMessage(context.Background(), msg))
			assert.Len(t, lists.reasons, tt.want)
		})
	}
}

func TestRunTreatsCancellationAsClean(t *testing.T) {
	lists := &fakeLists{}
	consumer := &fakeConsumer{
		messages: []*amqp.InvalidationMessage{
			amqp.NewInvalidationMessage("a", []string{"expenses"}, "expense created"),
			amqp.NewInvalidationMessage("b", nil, "bulk import"),
		},
		err: context.Canceled,
	}
	w := NewInvalidationWorker(consumer, lists, []string{"expenses"}, log.Discard())

	require.NoError(t, w.Run(context.Background()))
	assert.Equal(t, []string{"remote: expense created", "remote: bulk import"}, lists.reasons)
}

func TestRunReturnsConsumerErrors(t *testing.T) {
	boom := errors.New("boom")
	w := NewInvalidationWorker(&fakeConsumer{err: boom}, &fakeLists{}, nil, log.Discard())
	assert.ErrorIs(t, w.Run(context.Background()), boom)
}
