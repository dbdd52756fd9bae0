package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"expensepro/internal/core"
	"expensepro/internal/log"
)

var validationErrors = []error{
	core.ErrZeroDate,
	core.ErrInvalidAmount,
	core.ErrEmptyDescription,
	core.ErrDescriptionTooLong,
	core.ErrEmptyCategory,
}

func isValidationError(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// handleCreateExpense stores an expense from the entry form (or a JSON body)
// and tells the page to refresh its list and reset the form.
func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx).WithComponent(log.ComponentExpense)

	p := NewRequestBodyParser(r)
	exp, err := ParseExpenseInput(p, s.today())
	switch {
	case errors.Is(err, errInvalidAmount):
		s.writeEntryError(w, p, http.StatusUnprocessableEntity, "Invalid amount")
		return
	case errors.Is(err, errInvalidDate):
		s.writeEntryError(w, p, http.StatusUnprocessableEntity, "Invalid date")
		return
	case err != nil:
		logger.WarnContext(ctx, "Failed to parse expense request",
			log.FieldOperation, log.OpParse,
			log.FieldError, err)
		s.writeEntryError(w, p, http.StatusBadRequest, "Invalid request format")
		return
	}

	saved, err := s.expenses.CreateExpense(ctx, exp)
	if isValidationError(err) {
		s.writeEntryError(w, p, http.StatusUnprocessableEntity, "Invalid data: "+err.Error())
		return
	}
	if err != nil {
		s.events.LogError(ctx, "Failed to save expense", err, log.ComponentExpense, log.OpCreate,
			log.NewFields().WithExpense(0, exp.Description, exp.Amount.Cents, exp.Category))
		s.writeEntryError(w, p, http.StatusInternalServerError, "Error saving expense")
		return
	}

	s.events.LogExpenseCreated(ctx, saved.ID, saved.Description, saved.Amount.Cents, saved.Category)

	resp := NewHTMXResponse().
		TriggerExpenseCreated(saved.ID).
		TriggerFormReset().
		TriggerSuccessNotification(fmt.Sprintf("Saved %s (%s)", saved.Description, saved.Amount))
	if p.IsJSON() {
		resp.Status(http.StatusCreated).BodyJSON(toExpenseJSON(saved)).Write(w)
		return
	}
	resp.BodyHTML(`<div class="success">Saved: ` +
		template.HTMLEscapeString(saved.Description) + ` ` +
		template.HTMLEscapeString(saved.Amount.String()) + ` (` +
		template.HTMLEscapeString(saved.Category) + `)</div>`).
		Write(w)
}

func (s *Server) writeEntryError(w http.ResponseWriter, p *RequestBodyParser, status int, message string) {
	if p.IsJSON() {
		JSONError(status, message).Write(w)
		return
	}
	ErrorResponse(status, message).TriggerErrorNotification(message).Write(w)
}
