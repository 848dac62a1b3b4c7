package webapp

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/integrationkit/apphost/pipeline"
)

// ActionFunc implements a controller action.
type ActionFunc func(ctx *ControllerContext) (Result, error)

// Action describes one action of a controller.
type Action struct {
	Name    string
	Handler ActionFunc
	// Verbs lists the HTTP methods the action accepts. Empty means any.
	Verbs []string
	// Authorize requires an authenticated user; anonymous requests get a 401.
	Authorize bool
	// ValidateAntiForgery requires the antiforgery form field to match the antiforgery
	// cookie; mismatching requests get a 400.
	ValidateAntiForgery bool
}

func (a Action) allows(method string) bool {
	if len(a.Verbs) == 0 {
		return true
	}
	for _, v := range a.Verbs {
		if strings.EqualFold(v, method) {
			return true
		}
	}
	return false
}

// Controller groups actions. A new controller is created for every request, so its fields
// may be changed by filters before the action runs.
type Controller interface {
	Actions() []Action
}

// ControllerContext is what an action, its filters, and its result see of a request.
type ControllerContext struct {
	Request  *http.Request
	Response http.ResponseWriter
	Session  pipeline.Session
	// RouteData holds "controller", "action" and, if present, "id".
	RouteData map[string]string
	// ViewData is passed to views alongside the model.
	ViewData map[string]interface{}
	// User is the authenticated user name, or "" for an anonymous request.
	User     string
	Settings *pipeline.Settings

	ControllerName string
	ActionName     string
	Controller     Controller

	app *Application
}

// ID returns the "id" route value.
func (c *ControllerContext) ID() string {
	return c.RouteData["id"]
}

// Setting returns an application setting, or "" if it does not exist.
func (c *ControllerContext) Setting(key string) string {
	return c.Settings.Get(key).Value()
}

// Result is the outcome of an action. It is executed after the action filters have run.
type Result interface {
	Execute(ctx *ControllerContext) error
}

// ContentResult writes a literal body.
type ContentResult struct {
	Content     string
	ContentType string
}

func Content(content string) *ContentResult {
	return &ContentResult{Content: content, ContentType: "text/plain; charset=utf-8"}
}

func (r *ContentResult) Execute(ctx *ControllerContext) error {
	ctx.Response.Header().Set("Content-Type", r.ContentType)
	ctx.Response.WriteHeader(http.StatusOK)
	_, err := ctx.Response.Write([]byte(r.Content))
	return err
}

// ViewResult renders views/<controller>/<ViewName>.html.
type ViewResult struct {
	// ViewName defaults to the action name.
	ViewName string
	Model    interface{}
}

func View(model interface{}) *ViewResult { return &ViewResult{Model: model} }

func ViewNamed(name string, model interface{}) *ViewResult {
	return &ViewResult{ViewName: name, Model: model}
}

func (r *ViewResult) Execute(ctx *ControllerContext) error {
	name := r.ViewName
	if name == "" {
		name = ctx.ActionName
	}
	page := &ViewPage{
		Model:      r.Model,
		ViewData:   ctx.ViewData,
		Controller: ctx.ControllerName,
		Action:     ctx.ActionName,
		ctx:        ctx,
	}
	page.AntiForgeryToken = page.antiForgeryField
	var buf bytes.Buffer
	if err := ctx.app.views.render(&buf, ctx.ControllerName, name, page); err != nil {
		return err
	}
	ctx.Response.Header().Set("Content-Type", "text/html; charset=utf-8")
	ctx.Response.WriteHeader(http.StatusOK)
	_, err := ctx.Response.Write(buf.Bytes())
	return err
}

// RedirectResult sends a 302 to URL.
type RedirectResult struct {
	URL string
}

func Redirect(url string) *RedirectResult { return &RedirectResult{URL: url} }

func (r *RedirectResult) Execute(ctx *ControllerContext) error {
	http.Redirect(ctx.Response, ctx.Request, r.URL, http.StatusFound)
	return nil
}

// StatusResult sends a status code with a short description as the body.
type StatusResult struct {
	StatusCode  int
	Description string
}

func Status(code int) *StatusResult {
	return &StatusResult{StatusCode: code, Description: http.StatusText(code)}
}

func (r *StatusResult) Execute(ctx *ControllerContext) error {
	ctx.Response.Header().Set("Content-Type", "text/plain; charset=utf-8")
	ctx.Response.WriteHeader(r.StatusCode)
	_, err := fmt.Fprint(ctx.Response, r.Description)
	return err
}
