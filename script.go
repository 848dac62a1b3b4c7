package main

import (
	"net/http"

	"github.com/integrationkit/apphost/browsing"
	"github.com/integrationkit/apphost/transport"
)

type step struct {
	Method string
	URL    string
	Form   map[string]string
}

type script struct {
	Steps []step
}

type stepResult struct {
	Method  string
	URL     string
	Status  int
	Body    string
	Cookies []string
	Error   string
}

func (r stepResult) OK() bool {
	return r.Error == "" && r.Status < http.StatusBadRequest
}

func init() {
	transport.MustRegister(runScript)
}

// runScript makes each request in turn with one browsing session. A failed request is
// recorded and does not stop the script.
func runScript(s script, session *browsing.Session) ([]stepResult, error) {
	results := make([]stepResult, 0, len(s.Steps))
	for _, st := range s.Steps {
		r := stepResult{Method: st.Method, URL: st.URL}
		form := st.Form
		if st.Method == http.MethodPost && form == nil {
			form = map[string]string{}
		}
		result, err := session.Do(st.Method, st.URL, form, nil)
		if err != nil {
			r.Error = err.Error()
		} else {
			r.Status = result.StatusCode()
			r.Body = result.ResponseText
		}
		for _, c := range session.Cookies().Cookies() {
			r.Cookies = append(r.Cookies, c.Name+"="+c.Value)
		}
		results = append(results, r)
	}
	return results, nil
}
