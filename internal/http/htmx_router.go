package http

import (
	"net/http"
	"net/url"

	"expensepro/internal/urlstate"
)

// htmxRouter exposes the browser location of one HTMX request as a
// urlstate.Router. The location comes from HX-Current-URL; navigating sets
// the history header that makes htmx update the address bar once the
// response is swapped in. The browser applies it after the request ends, so
// no change notification is ever delivered.
type htmxRouter struct {
	path    string
	params  url.Values
	headers http.Header
}

// newHTMXRouter reads the current location of r. The header is trusted only
// when it names the same host and the page the partial belongs to;
// otherwise the page starts from its bare path.
func newHTMXRouter(r *http.Request, pagePath string, headers http.Header) *htmxRouter {
	router := &htmxRouter{path: pagePath, params: url.Values{}, headers: headers}

	current, err := url.Parse(r.Header.Get(HeaderHXCurrentURL))
	if err != nil || current.Path != pagePath {
		return router
	}
	if current.Host != "" && current.Host != r.Host {
		return router
	}
	router.params = current.Query()
	return router
}

// SearchParams implements urlstate.Router.
func (h *htmxRouter) SearchParams() url.Values {
	return h.params
}

// Path implements urlstate.Router.
func (h *htmxRouter) Path() string {
	return h.path
}

// Navigate implements urlstate.Router.
func (h *htmxRouter) Navigate(target string, opts urlstate.NavigateOptions) error {
	u, err := url.Parse(target)
	if err != nil {
		return err
	}
	if opts.Replace {
		h.headers.Del(HeaderHXPushURL)
		h.headers.Set(HeaderHXReplaceURL, target)
	} else {
		h.headers.Del(HeaderHXReplaceURL)
		h.headers.Set(HeaderHXPushURL, target)
	}
	h.params = u.Query()
	return nil
}

// OnSearchParamsChange implements urlstate.Router. htmxRouter is exempt
// from delivering changes: the browser applies the history header after the
// response is sent, when the per-request binding is already gone. Echoes of
// Navigate are therefore never observed.
func (h *htmxRouter) OnSearchParamsChange(func(url.Values)) func() {
	return func() {}
}
