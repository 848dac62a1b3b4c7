package webapp

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/integrationkit/apphost/pipeline"
)

// instance is a pooled request handler. Its steps are a snapshot of the handler chain taken by
// build; hooks added after that take effect only on the next build.
type instance struct {
	id           int
	rt           *runtime
	postHandlers []func(pipeline.RequestState)
	steps        []step
	current      *requestState
	lock         sync.Mutex
}

type step func(rs *requestState) error

// requestState is the state of the request an instance is handling. It implements
// pipeline.RequestState.
type requestState struct {
	request  *http.Request
	response *response
	session  *session
	err      error
}

func (rs *requestState) Context() context.Context { return rs.request.Context() }

func (rs *requestState) Session() pipeline.Session {
	if rs.session == nil {
		return nil
	}
	return rs.session
}

func (rs *requestState) Response() pipeline.Response { return rs.response }

type requestStateKey struct{}

func requestStateFrom(ctx context.Context) *requestState {
	rs, _ := ctx.Value(requestStateKey{}).(*requestState)
	return rs
}

func (i *instance) OnPostRequestHandlerExecute(hook func(pipeline.RequestState)) {
	i.lock.Lock()
	defer i.lock.Unlock()
	i.postHandlers = append(i.postHandlers, hook)
}

func (i *instance) build() {
	i.lock.Lock()
	defer i.lock.Unlock()
	steps := []step{i.acquireSession, i.executeHandler}
	for _, h := range i.postHandlers {
		hook := h
		steps = append(steps, func(rs *requestState) error {
			hook(rs)
			return nil
		})
	}
	steps = append(steps, i.releaseSession)
	i.steps = steps
}

func (i *instance) run(req *http.Request, resp *response) error {
	i.lock.Lock()
	steps := i.steps
	i.lock.Unlock()

	rs := &requestState{response: resp}
	rs.request = req.WithContext(context.WithValue(req.Context(), requestStateKey{}, rs))
	i.current = rs
	defer func() { i.current = nil }()

	for _, s := range steps {
		if err := s(rs); err != nil {
			return err
		}
	}
	return rs.err
}

func (i *instance) sessionTimeout() time.Duration {
	return time.Duration(i.rt.app.config.Session.Timeout)
}

func (i *instance) acquireSession(rs *requestState) error {
	cookieName := i.rt.app.config.Session.CookieName
	if c, err := rs.request.Cookie(cookieName); err == nil && c.Value != "" {
		s, err := loadSession(rs.request.Context(), i.rt.sessions, c.Value)
		if err != nil {
			return &pipeline.PipelineError{StatusCode: http.StatusInternalServerError,
				Path: rs.request.URL.Path, Cause: err}
		}
		if s != nil {
			rs.session = s
			return nil
		}
	}
	rs.session = newSession()
	return nil
}

// executeHandler routes the request. A failure inside the application is kept in rs.err, so
// that the remaining steps still run.
func (i *instance) executeHandler(rs *requestState) error {
	err := safely(func() error {
		i.rt.router.ServeHTTP(rs.response, rs.request)
		return nil
	})
	if err != nil && rs.err == nil {
		rs.response.WriteHeader(http.StatusInternalServerError)
		rs.err = &pipeline.PipelineError{StatusCode: http.StatusInternalServerError,
			Path: rs.request.URL.Path, Cause: err}
	}
	return nil
}

func (i *instance) releaseSession(rs *requestState) error {
	s := rs.session
	if s == nil {
		return nil
	}
	s.lock.RLock()
	dirty, isNew := s.dirty, s.isNew
	s.lock.RUnlock()
	if !dirty {
		return nil
	}
	data, err := s.encode()
	if err == nil {
		err = i.rt.sessions.Save(rs.request.Context(), s.id, data, i.sessionTimeout())
	}
	if err != nil {
		return &pipeline.PipelineError{StatusCode: http.StatusInternalServerError,
			Path: rs.request.URL.Path, Cause: err}
	}
	if isNew {
		http.SetCookie(rs.response, &http.Cookie{
			Name:     i.rt.app.config.Session.CookieName,
			Value:    s.id,
			Path:     i.rt.app.virtualPath,
			HttpOnly: true,
		})
	}
	s.lock.Lock()
	s.dirty, s.isNew = false, false
	s.lock.Unlock()
	return nil
}
