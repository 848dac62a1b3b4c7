package webapp

import (
	"io"
	"net/http"
)

// response is both the http.ResponseWriter that handlers write to and the pipeline.Response
// that observers see. The body goes to the worker request's output.
type response struct {
	header      http.Header
	status      int
	wroteHeader bool
	out         io.Writer
	written     int64
}

func newResponse(out io.Writer) *response {
	if out == nil {
		out = io.Discard
	}
	return &response{header: make(http.Header), status: http.StatusOK, out: out}
}

func (r *response) Header() http.Header { return r.header }

func (r *response) WriteHeader(code int) {
	if r.wroteHeader {
		return
	}
	r.wroteHeader = true
	r.status = code
}

func (r *response) Write(p []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	n, err := r.out.Write(p)
	r.written += int64(n)
	return n, err
}

func (r *response) StatusCode() int { return r.status }

func (r *response) Cookies() []*http.Cookie {
	return readSetCookies(r.header)
}

func readSetCookies(h http.Header) []*http.Cookie {
	return (&http.Response{Header: h}).Cookies()
}
