// Package browsing models one client making a sequence of requests to a hosted application,
// keeping cookies and session state between them as a browser would.
package browsing

import (
	"bytes"
	"context"
	"net/http"

	"github.com/integrationkit/apphost/capture"
	"github.com/integrationkit/apphost/pipeline"
	"github.com/integrationkit/apphost/simulate"
)

// Session is a browsing session. It is not safe for concurrent use; a domain runs at most one
// request at a time.
type Session struct {
	driver *simulate.Driver
	box    *capture.Box
	jar    *CookieJar
	state  pipeline.Session
	ctx    context.Context
}

// NewSession creates a session that sends requests with driver and reads what they did
// from box.
func NewSession(ctx context.Context, driver *simulate.Driver, box *capture.Box) *Session {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Session{driver: driver, box: box, jar: NewCookieJar(), ctx: ctx}
}

// Get requests url, which may include a query string.
func (s *Session) Get(url string) (*RequestResult, error) {
	return s.Do(http.MethodGet, url, nil, nil)
}

// Post posts form to url. The form may be anything accepted by simulate.ConvertFromObject,
// or nil for an empty body.
func (s *Session) Post(url string, form interface{}) (*RequestResult, error) {
	fields := map[string]string{}
	if form != nil {
		var err error
		if fields, err = simulate.ConvertFromObject(form); err != nil {
			return nil, err
		}
	}
	return s.Do(http.MethodPost, url, fields, nil)
}

// Do sends a request with any method, form fields, and extra headers. A nil form means the
// request has no body.
func (s *Session) Do(method, url string, form, headers map[string]string) (*RequestResult, error) {
	req, err := simulate.NewRequest(method, url, form, headers, s.jar.Cookies())
	if err != nil {
		return nil, err
	}
	var output bytes.Buffer
	req.Output = &output
	if err := s.driver.Drive(s.ctx, s.box, req); err != nil {
		return nil, err
	}

	captured := s.box.Snapshot()
	if captured.Response != nil {
		s.jar.Merge(captured.Response.Cookies())
	}
	s.state = captured.Session
	return &RequestResult{
		ResponseText:          output.String(),
		Response:              captured.Response,
		ActionExecutedContext: captured.ActionExecuted,
		ResultExecutedContext: captured.ResultExecuted,
	}, nil
}

// Cookies returns the session's cookie jar.
func (s *Session) Cookies() *CookieJar { return s.jar }

// State returns the server-side session state seen by the last request, or nil.
func (s *Session) State() pipeline.Session { return s.state }
