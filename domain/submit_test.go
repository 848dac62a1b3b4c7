package domain

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"

	"github.com/integrationkit/apphost/browsing"
	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/transport"
	"github.com/integrationkit/apphost/webapp"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const counterAppYAML = `application: domain-test
appSettings:
  TestMessage: original
`

type counterController struct{}

func (counterController) Actions() []webapp.Action {
	return []webapp.Action{
		{Name: "Next", Handler: func(ctx *webapp.ControllerContext) (webapp.Result, error) {
			n := ctx.Session.Get("n").IntValue() + 1
			ctx.Session.Set("n", ldvalue.Int(n))
			return webapp.Content(strconv.Itoa(n)), nil
		}},
		{Name: "Message", Handler: func(ctx *webapp.ControllerContext) (webapp.Result, error) {
			return webapp.Content(ctx.Setting("TestMessage")), nil
		}},
	}
}

func init() {
	webapp.RegisterApplication("domain-test", func(app *webapp.Application) error {
		app.AddController("Counter", func() webapp.Controller { return counterController{} })
		return nil
	})
}

var errWorkFailed = errors.New("work failed")

type countState struct {
	Times int
}

func countRequests(s countState, env *Env) (string, string, error) {
	session := env.NewSession()
	var last *browsing.RequestResult
	for i := 0; i < s.Times; i++ {
		var err error
		if last, err = session.Get("~/counter/next"); err != nil {
			return "", "", err
		}
	}
	return last.ResponseText, env.Setting("TestMessage"), nil
}

func readMessage(session *browsing.Session) (string, error) {
	result, err := session.Get("/counter/message")
	if err != nil {
		return "", err
	}
	return result.ResponseText, nil
}

func failingWork(*Env) error { return errWorkFailed }

func panickingWork(*Env) { panic("boom") }

func exitingWork(*Env) { runtime.Goexit() }

type channelState struct {
	Done chan struct{}
}

func useChannel(channelState, *Env) {}

func testRegistry() *transport.Registry {
	r := transport.NewRegistry()
	for _, fn := range []interface{}{countRequests, readMessage, failingWork, panickingWork, exitingWork, useChannel} {
		if err := r.Register(fn); err != nil {
			panic(err)
		}
	}
	return r
}

func unboundWork() *transport.Func { return transport.New(failingWork, nil) }

func newWebappDomain(t *testing.T, overrides map[string]string) *Domain {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(counterAppYAML), 0o600))
	d, err := Create(dir, "/", WithRegistry(testRegistry()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.RunOnce(overrides))
	return d
}

func TestSubmitReturnsResults(t *testing.T) {
	d := newWebappDomain(t, map[string]string{"TestMessage": "overridden"})

	var count, message string
	require.NoError(t, d.Submit(transport.New(countRequests, countState{Times: 3}), &count, &message))
	assert.Equal(t, "3", count)
	assert.Equal(t, "overridden", message)

	// Each call gets a fresh browsing session.
	require.NoError(t, d.Submit(transport.New(countRequests, countState{Times: 1}), &count))
	assert.Equal(t, "1", count)
	assert.Equal(t, 2.0, testutil.ToFloat64(d.metrics.submissions.WithLabelValues(outcomeOK)))
}

func TestBrowseRunsScriptWithSession(t *testing.T) {
	d := newWebappDomain(t, nil)

	var message string
	require.NoError(t, d.Browse(transport.New(readMessage, nil), &message))
	assert.Equal(t, "original", message)
}

func TestSubmitPropagatesErrors(t *testing.T) {
	d := newWebappDomain(t, nil)

	assert.Same(t, errWorkFailed, d.Submit(transport.New(failingWork, nil)))

	err := d.Submit(transport.New(panickingWork, nil))
	var pe *PanicError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "boom", pe.Value)
	assert.NotEmpty(t, pe.Stack)

	assert.Equal(t, ErrWorkExited, d.Submit(transport.New(exitingWork, nil)))

	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.submissions.WithLabelValues(outcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.submissions.WithLabelValues(outcomePanic)))
	assert.Equal(t, 1.0, testutil.ToFloat64(d.metrics.submissions.WithLabelValues(outcomeExited)))
}

func TestSubmitRejectsUntransportableWork(t *testing.T) {
	d := newWebappDomain(t, nil)

	err := d.Submit(transport.New(useChannel, channelState{Done: make(chan struct{})}))
	var te *framework.TransportError
	require.ErrorAs(t, err, &te)
	assert.Contains(t, te.Field, "useChannel.Done")

	err = d.Submit(transport.New(func(*Env) {}, nil))
	assert.ErrorAs(t, err, &te)
}

func TestSubmitChecksResultArguments(t *testing.T) {
	d := newWebappDomain(t, nil)
	var ae *framework.ArgumentError

	assert.ErrorAs(t, d.Submit(nil), &ae)

	var s string
	assert.ErrorAs(t, d.Submit(transport.New(countRequests, countState{Times: 1}), s), &ae)

	var a, b, c string
	err := d.Submit(transport.New(countRequests, countState{Times: 1}), &a, &b, &c)
	assert.ErrorAs(t, err, &ae)

	var n int
	err = d.Submit(transport.New(countRequests, countState{Times: 1}), &n)
	var te *framework.TransportError
	assert.ErrorAs(t, err, &te)
}

func TestEnvExposesApplication(t *testing.T) {
	d := newWebappDomain(t, nil)
	env := &Env{domain: d}

	assert.Same(t, d.Runtime(), env.Runtime())
	assert.Equal(t, "original", env.Setting("TestMessage"))
	assert.Equal(t, "", env.Setting("Missing"))
	app, err := webapp.ApplicationOf(env.Runtime())
	require.NoError(t, err)
	assert.Equal(t, "domain-test", app.Name())
}
