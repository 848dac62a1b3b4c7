package webapp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/integrationkit/apphost/framework"
	"github.com/integrationkit/apphost/pipeline"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
	"github.com/launchdarkly/go-test-helpers/v2/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAppName = "webapp-test"

type greetController struct {
	Greeting string
}

func (c *greetController) Actions() []Action {
	return []Action{
		{Name: "Hello", Handler: c.hello},
		{Name: "Page", Handler: c.page},
		{Name: "Count", Handler: c.count},
		{Name: "Fail", Handler: c.fail},
		{Name: "Panic", Handler: c.explode},
		{Name: "PostOnly", Handler: c.hello, Verbs: []string{"POST"}},
		{Name: "Secret", Handler: c.secret, Authorize: true},
		{Name: "Login", Handler: c.login, Verbs: []string{"POST"}},
		{Name: "Protected", Handler: c.hello, ValidateAntiForgery: true},
		{Name: "Echo", Handler: c.echo},
		{Name: "Away", Handler: c.away},
	}
}

func (c *greetController) hello(ctx *ControllerContext) (Result, error) {
	return Content(c.Greeting + " " + ctx.ID()), nil
}

func (c *greetController) page(ctx *ControllerContext) (Result, error) {
	ctx.ViewData["Title"] = "Greetings"
	return View(c.Greeting), nil
}

func (c *greetController) count(ctx *ControllerContext) (Result, error) {
	n := ctx.Session.Get("count").IntValue() + 1
	ctx.Session.Set("count", ldvalue.Int(n))
	return Content(ldvalue.Int(n).String()), nil
}

func (c *greetController) fail(*ControllerContext) (Result, error) {
	return nil, errors.New("action failed")
}

func (c *greetController) explode(*ControllerContext) (Result, error) {
	panic("action panicked")
}

func (c *greetController) secret(ctx *ControllerContext) (Result, error) {
	return Content("secret for " + ctx.User), nil
}

func (c *greetController) login(ctx *ControllerContext) (Result, error) {
	ctx.Session.Set(SessionUserKey, ldvalue.String(ctx.Request.PostFormValue("name")))
	return Content("ok"), nil
}

func (c *greetController) echo(ctx *ControllerContext) (Result, error) {
	return Content(ctx.Request.Method + " " + ctx.Request.FormValue("field") + " " +
		ctx.Request.Header.Get("X-Test")), nil
}

func (c *greetController) away(*ControllerContext) (Result, error) {
	return Redirect("/greet/hello"), nil
}

type recordingFilter struct {
	events *[]string
	name   string
}

func (f recordingFilter) OnActionExecuting(*ActionExecutingContext) {
	*f.events = append(*f.events, f.name+":executing")
}

func (f recordingFilter) OnActionExecuted(*ActionExecutedContext) {
	*f.events = append(*f.events, f.name+":executed")
}

func (f recordingFilter) OnResultExecuting(*ResultExecutingContext) {
	*f.events = append(*f.events, f.name+":result-executing")
}

func (f recordingFilter) OnResultExecuted(*ResultExecutedContext) {
	*f.events = append(*f.events, f.name+":result-executed")
}

func init() {
	RegisterApplication(testAppName, func(app *Application) error {
		greeting := app.Settings().Get("Greeting").OrElse("hello")
		app.AddController("Greet", func() Controller { return &greetController{Greeting: greeting} })
		app.Handle("/raw/status", httphelpers.HandlerWithStatus(http.StatusTeapot))
		return nil
	})
	RegisterApplication("webapp-broken", func(app *Application) error {
		return errors.New("cannot configure")
	})
}

const testAppYAML = `application: webapp-test
appSettings:
  Greeting: hi
  Other: x
session:
  cookieName: test_session
`

const testView = `<h1>{{.ViewData.Title}}</h1><p>{{.Model}} {{.Setting "Other"}}</p>` +
	`<form>{{call .AntiForgeryToken}}</form>`

func makeAppDir(t *testing.T, config string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(config), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "views", "greet"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "views", "greet", "page.html"), []byte(testView), 0o600))
	return dir
}

// testRequest is a minimal pipeline.WorkerRequest.
type testRequest struct {
	path, query, method string
	headers             http.Header
	body                []byte
	out                 bytes.Buffer
	ctx                 context.Context
}

func newTestRequest(method, path string) *testRequest {
	p, q, _ := strings.Cut(path, "?")
	return &testRequest{method: method, path: p, query: q, headers: make(http.Header), ctx: context.Background()}
}

func (r *testRequest) withForm(values url.Values) *testRequest {
	r.body = []byte(values.Encode())
	r.headers.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func (r *testRequest) withCookies(cookies []*http.Cookie) *testRequest {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	r.headers.Set("Cookie", strings.Join(parts, "; "))
	return r
}

func (r *testRequest) Path() string        { return r.path }
func (r *testRequest) QueryString() string { return r.query }
func (r *testRequest) Method() string      { return r.method }
func (r *testRequest) KnownHeader(h pipeline.KnownHeader) (string, bool) {
	v := r.headers.Get(h.String())
	return v, v != ""
}
func (r *testRequest) UnknownHeader(name string) (string, bool) {
	if pipeline.KnownHeaderIndex(name) >= 0 {
		return "", false
	}
	v := r.headers.Get(name)
	return v, v != ""
}
func (r *testRequest) UnknownHeaders() [][2]string {
	var ret [][2]string
	for k, vs := range r.headers {
		if pipeline.KnownHeaderIndex(k) < 0 {
			for _, v := range vs {
				ret = append(ret, [2]string{k, v})
			}
		}
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i][0] < ret[j][0] })
	return ret
}
func (r *testRequest) EntityBody() []byte       { return r.body }
func (r *testRequest) Output() io.Writer        { return &r.out }
func (r *testRequest) Context() context.Context { return r.ctx }

// recordingObserver keeps the last action and result contexts it saw.
type recordingObserver struct {
	actions, results []interface{}
}

func (o *recordingObserver) OnActionExecuted(_ context.Context, c interface{}) {
	o.actions = append(o.actions, c)
}

func (o *recordingObserver) OnResultExecuted(_ context.Context, c interface{}) {
	o.results = append(o.results, c)
}

func newTestRuntime(t *testing.T, config string, virtualPath string) pipeline.Runtime {
	rt, err := Factory(makeAppDir(t, config), virtualPath, framework.NullLogger())
	require.NoError(t, err)
	return rt
}

func process(t *testing.T, rt pipeline.Runtime, wr *testRequest) (*testRequest, *response, error) {
	var captured *response
	inst, err := rt.GetOrCreateInstance()
	require.NoError(t, err)
	inst.OnPostRequestHandlerExecute(func(rs pipeline.RequestState) {
		captured = rs.Response().(*response)
	})
	require.NoError(t, rt.RebuildHandlerChain(inst))
	rt.RecycleInstance(inst)
	err = rt.ProcessRequest(wr)
	return wr, captured, err
}

func TestFactoryReportsSetupErrors(t *testing.T) {
	var se *framework.SetupError

	_, err := Factory(filepath.Join(t.TempDir(), "missing"), "/", nil)
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Reason, "does not exist")

	_, err = Factory(t.TempDir(), "/", nil)
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Reason, "app.yaml")

	_, err = Factory(makeAppDir(t, "application: nobody-registered-this\n"), "/", nil)
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Reason, "not registered")

	_, err = Factory(makeAppDir(t, "appSettings:\n  A: b\n"), "/", nil)
	require.True(t, errors.As(err, &se))

	_, err = Factory(makeAppDir(t, testAppYAML), "relative", nil)
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Reason, "virtual path")
}

func TestConfigurationFailureIsReportedOnFirstInstance(t *testing.T) {
	rt, err := Factory(makeAppDir(t, "application: webapp-broken\n"), "", nil)
	require.NoError(t, err)
	_, err = rt.GetOrCreateInstance()
	var se *framework.SetupError
	require.True(t, errors.As(err, &se))
	assert.Contains(t, se.Reason, "cannot configure")
}

func TestLoadConfigKeepsSettingOrder(t *testing.T) {
	config, path, err := LoadConfig(makeAppDir(t, testAppYAML))
	require.NoError(t, err)
	assert.Equal(t, "app.yaml", filepath.Base(path))
	assert.Equal(t, "webapp-test", config.Application)
	assert.Equal(t, []string{"Greeting", "Other"}, config.AppSettings.Keys)
	assert.Equal(t, "test_session", config.Session.CookieName)
	assert.Equal(t, "memory", config.Session.Store)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.json"),
		[]byte(`{"application":"x","appSettings":{"Z":"1","A":"2"},"session":{"timeout":"5m"}}`), 0o600))
	config, _, err = LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"Z", "A"}, config.AppSettings.Keys)
	assert.Equal(t, "2", config.AppSettings.Values["A"])
	assert.Equal(t, Duration(5*time.Minute), config.Session.Timeout)
}

func TestSettingsChangedBeforeStartAreSeenByApplication(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")
	require.True(t, rt.Settings().Set("Greeting", "howdy"))

	wr, _, err := process(t, rt, newTestRequest("GET", "greet/hello/bob"))
	require.NoError(t, err)
	assert.Equal(t, "howdy bob", wr.out.String())
}

func TestRoutingIsCaseInsensitiveAndUsesDefaults(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	wr, resp, err := process(t, rt, newTestRequest("get", "GREET/HELLO"))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "hi ", wr.out.String())

	_, resp, err = process(t, rt, newTestRequest("GET", ""))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode())

	_, resp, err = process(t, rt, newTestRequest("GET", "greet/nosuchaction"))
	require.NoError(t, err)
	assert.Equal(t, 404, resp.StatusCode())

	_, resp, err = process(t, rt, newTestRequest("GET", "greet/postonly"))
	require.NoError(t, err)
	assert.Equal(t, 405, resp.StatusCode())
}

func TestVirtualPathPrefixesRoutes(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/app")

	wr, _, err := process(t, rt, newTestRequest("GET", "greet/hello/x"))
	require.NoError(t, err)
	assert.Equal(t, "hi x", wr.out.String())
}

func TestRawHandlerMount(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	_, resp, err := process(t, rt, newTestRequest("GET", "raw/status"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode())
}

func TestFormQueryAndUnknownHeadersReachTheAction(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	req := newTestRequest("POST", "greet/echo").withForm(url.Values{"field": {"posted value"}})
	req.headers.Set("X-Test", "custom")
	wr, _, err := process(t, rt, req)
	require.NoError(t, err)
	assert.Equal(t, "POST posted value custom", wr.out.String())

	wr, _, err = process(t, rt, newTestRequest("GET", "greet/echo?field=q"))
	require.NoError(t, err)
	assert.Equal(t, "GET q ", wr.out.String())
}

func TestRedirectResult(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	_, resp, err := process(t, rt, newTestRequest("GET", "greet/away"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode())
	assert.Equal(t, "/greet/hello", resp.Header().Get("Location"))
}

func TestActionErrorsAndPanicsArePipelineErrors(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	for _, path := range []string{"greet/fail", "greet/panic"} {
		t.Run(path, func(t *testing.T) {
			_, resp, err := process(t, rt, newTestRequest("GET", path))
			var pe *pipeline.PipelineError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, 500, pe.StatusCode)
			assert.Equal(t, 500, resp.StatusCode())
		})
	}
}

func TestSessionIsIssuedOnceAndPersisted(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	wr, resp, err := process(t, rt, newTestRequest("GET", "greet/count"))
	require.NoError(t, err)
	assert.Equal(t, "1", wr.out.String())
	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "test_session", cookies[0].Name)

	wr, resp, err = process(t, rt, newTestRequest("GET", "greet/count").withCookies(cookies))
	require.NoError(t, err)
	assert.Equal(t, "2", wr.out.String())
	assert.Empty(t, resp.Cookies())
}

func TestAuthorizeRequiresUser(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	_, resp, err := process(t, rt, newTestRequest("GET", "greet/secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode())

	_, resp, err = process(t, rt, newTestRequest("POST", "greet/login").withForm(url.Values{"name": {"ann"}}))
	require.NoError(t, err)
	wr, resp, err := process(t, rt, newTestRequest("GET", "greet/secret").withCookies(resp.Cookies()))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode())
	assert.Equal(t, "secret for ann", wr.out.String())
}

func TestViewRendersWithAntiForgeryToken(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")

	wr, resp, err := process(t, rt, newTestRequest("GET", "greet/page"))
	require.NoError(t, err)
	body := wr.out.String()
	assert.Contains(t, body, "<h1>Greetings</h1><p>hi x</p>")
	assert.Contains(t, body, `name="__RequestVerificationToken" type="hidden"`)

	var token *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == AntiForgeryFieldName {
			token = c
		}
	}
	require.NotNil(t, token)
	assert.Contains(t, body, `value="`+token.Value+`"`)

	_, resp, err = process(t, rt, newTestRequest("POST", "greet/protected").
		withForm(url.Values{AntiForgeryFieldName: {token.Value}}).withCookies([]*http.Cookie{token}))
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode())

	_, resp, err = process(t, rt, newTestRequest("POST", "greet/protected").
		withForm(url.Values{AntiForgeryFieldName: {"forged"}}).withCookies([]*http.Cookie{token}))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode())
}

func TestHooksTakeEffectOnlyAfterRebuild(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")
	inst, err := rt.GetOrCreateInstance()
	require.NoError(t, err)
	calls := 0
	inst.OnPostRequestHandlerExecute(func(pipeline.RequestState) { calls++ })
	rt.RecycleInstance(inst)

	require.NoError(t, rt.ProcessRequest(newTestRequest("GET", "greet/hello")))
	assert.Equal(t, 0, calls)

	inst, err = rt.GetOrCreateInstance()
	require.NoError(t, err)
	require.NoError(t, rt.RebuildHandlerChain(inst))
	rt.RecycleInstance(inst)

	require.NoError(t, rt.ProcessRequest(newTestRequest("GET", "greet/hello")))
	assert.Equal(t, 1, calls)
	assert.Nil(t, inst.(*instance).current)
}

func TestObserversAndFiltersRunInOrder(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")
	observer := &recordingObserver{}
	rt.AddObserver(observer)
	inst, err := rt.GetOrCreateInstance()
	require.NoError(t, err)
	rt.RecycleInstance(inst)

	app, err := ApplicationOf(rt)
	require.NoError(t, err)
	var events []string
	require.NoError(t, app.AddFilter(recordingFilter{&events, "a"}))
	app.AddFilterProvider(FilterProviderFunc(func(*ControllerContext) []interface{} {
		return []interface{}{recordingFilter{&events, "b"}}
	}))
	assert.Error(t, app.AddFilter("not a filter"))

	require.NoError(t, rt.ProcessRequest(newTestRequest("GET", "greet/hello/1")))
	assert.Equal(t, []string{
		"a:executing", "b:executing", "b:executed", "a:executed",
		"a:result-executing", "b:result-executing", "b:result-executed", "a:result-executed",
	}, events)

	require.Len(t, observer.actions, 1)
	executed := observer.actions[0].(*ActionExecutedContext)
	assert.Equal(t, "Hello", executed.ActionName)
	assert.Equal(t, "1", executed.ID())
	require.Len(t, observer.results, 1)
	assert.IsType(t, &ContentResult{}, observer.results[0].(*ResultExecutedContext).Result)
}

func TestInjectionFilterProviderDisablesItself(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")
	inst, err := rt.GetOrCreateInstance()
	require.NoError(t, err)
	rt.RecycleInstance(inst)
	app, err := ApplicationOf(rt)
	require.NoError(t, err)

	calls := 0
	provider := NewInjectionFilterProvider(func(ctx *ActionExecutingContext) bool {
		calls++
		ctx.Controller.(*greetController).Greeting = "injected"
		return false
	})
	app.AddFilterProvider(provider)

	wr := newTestRequest("GET", "greet/hello")
	require.NoError(t, rt.ProcessRequest(wr))
	assert.Equal(t, "injected ", wr.out.String())
	assert.True(t, provider.Disabled())

	wr = newTestRequest("GET", "greet/hello")
	require.NoError(t, rt.ProcessRequest(wr))
	assert.Equal(t, "hi ", wr.out.String())
	assert.Equal(t, 1, calls)
}

func TestApplicationOfRequiresStartedWebappRuntime(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")
	_, err := ApplicationOf(rt)
	assert.Error(t, err)

	_, err = ApplicationOf(nil)
	assert.Error(t, err)
}

func TestClosedRuntimeRejectsInstances(t *testing.T) {
	rt := newTestRuntime(t, testAppYAML, "/")
	_, _, err := process(t, rt, newTestRequest("GET", "greet/hello"))
	require.NoError(t, err)

	closer, ok := rt.(io.Closer)
	require.True(t, ok)
	require.NoError(t, closer.Close())
	require.NoError(t, closer.Close())

	_, err = rt.GetOrCreateInstance()
	var se *framework.SetupError
	assert.ErrorAs(t, err, &se)
}
