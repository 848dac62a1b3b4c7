// Package simulate drives a pipeline.Runtime with synthetic requests, without a network.
package simulate

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"

	"github.com/integrationkit/apphost/pipeline"
)

const formContentType = "application/x-www-form-urlencoded"

// Request is the input of one simulated request.
type Request struct {
	// Path is relative to the application root, without a leading "/" or "~/".
	Path  string
	Query string
	// Method is passed to the pipeline as given.
	Method string
	// Form holds posted form fields. Nil means that the request has no body.
	Form map[string]string
	// Headers holds extra request headers. Nil means none.
	Headers map[string]string
	// Cookies are sent in order in the Cookie header.
	Cookies []*http.Cookie
	// Output receives the response body. Nil discards it.
	Output io.Writer
}

// NewRequest builds a Request for url, which may carry a query string and a leading "/" or
// "~/".
func NewRequest(method, url string, form, headers map[string]string, cookies []*http.Cookie) (*Request, error) {
	path, query, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Request{Path: path, Query: query, Method: method, Form: form, Headers: headers, Cookies: cookies}, nil
}

// isPostLike reports whether the method sends form fields in its body.
func isPostLike(method string) bool {
	return strings.EqualFold(method, http.MethodPost) ||
		strings.EqualFold(method, http.MethodPut) ||
		strings.EqualFold(method, http.MethodPatch)
}

// workerRequest presents a Request to the pipeline.
type workerRequest struct {
	req  *Request
	body []byte
	ctx  context.Context
}

func newWorkerRequest(ctx context.Context, req *Request) *workerRequest {
	wr := &workerRequest{req: req, ctx: ctx}
	if req.Form != nil {
		wr.body = ConvertToFormBody(req.Form)
	}
	return wr
}

func (w *workerRequest) Path() string        { return w.req.Path }
func (w *workerRequest) QueryString() string { return w.req.Query }
func (w *workerRequest) Method() string      { return w.req.Method }
func (w *workerRequest) EntityBody() []byte  { return w.body }
func (w *workerRequest) Output() io.Writer {
	if w.req.Output == nil {
		return io.Discard
	}
	return w.req.Output
}

func (w *workerRequest) Context() context.Context { return w.ctx }

func (w *workerRequest) KnownHeader(h pipeline.KnownHeader) (string, bool) {
	switch h {
	case pipeline.HeaderContentType:
		if isPostLike(w.req.Method) {
			return formContentType, true
		}
	case pipeline.HeaderCookie:
		return w.cookieHeader()
	}
	return w.header(h.String())
}

func (w *workerRequest) UnknownHeader(name string) (string, bool) {
	if pipeline.KnownHeaderIndex(name) >= 0 {
		return "", false
	}
	return w.header(name)
}

// UnknownHeaders returns the supplied headers that are not known ones, sorted by name.
func (w *workerRequest) UnknownHeaders() [][2]string {
	var ret [][2]string
	for k, v := range w.req.Headers {
		if pipeline.KnownHeaderIndex(k) < 0 {
			ret = append(ret, [2]string{k, v})
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i][0] < ret[j][0] })
	return ret
}

func (w *workerRequest) header(name string) (string, bool) {
	for k, v := range w.req.Headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}

func (w *workerRequest) cookieHeader() (string, bool) {
	if len(w.req.Cookies) == 0 {
		return "", false
	}
	var b strings.Builder
	for _, c := range w.req.Cookies {
		b.WriteString(c.Name)
		b.WriteByte('=')
		b.WriteString(c.Value)
		b.WriteByte(';')
	}
	return b.String(), true
}
