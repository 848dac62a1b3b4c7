package webapp

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/integrationkit/apphost/pipeline"

	"github.com/gorilla/mux"
)

const (
	defaultController = "home"
	defaultAction     = "index"
)

// buildRouter creates the routes under the virtual path: raw handler mounts first, then the
// conventional {controller}/{action}/{id} routes.
func (r *runtime) buildRouter() *mux.Router {
	router := mux.NewRouter()
	routes := router
	if prefix := strings.TrimSuffix(r.app.virtualPath, "/"); prefix != "" {
		routes = router.PathPrefix(prefix).Subrouter()
	}

	r.app.lock.RLock()
	for _, m := range r.app.mounts {
		routes.Handle(m.path, m.handler)
	}
	r.app.lock.RUnlock()

	routes.HandleFunc("/", r.dispatch)
	routes.HandleFunc("/{controller}", r.dispatch)
	routes.HandleFunc("/{controller}/", r.dispatch)
	routes.HandleFunc("/{controller}/{action}", r.dispatch)
	routes.HandleFunc("/{controller}/{action}/{id}", r.dispatch)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.NotFound(w, req)
	})
	return router
}

// dispatch runs the controller action selected by the route.
func (r *runtime) dispatch(w http.ResponseWriter, req *http.Request) {
	rs := requestStateFrom(req.Context())
	vars := mux.Vars(req)
	controllerName := orDefault(vars["controller"], defaultController)
	actionName := orDefault(vars["action"], defaultAction)

	factory, ok := r.app.controllerFactory(controllerName)
	if !ok {
		http.NotFound(w, req)
		return
	}
	controller := factory()
	action, ok := findAction(controller, actionName)
	if !ok {
		http.NotFound(w, req)
		return
	}
	if !action.allows(req.Method) {
		w.Header().Set("Allow", strings.Join(action.Verbs, ", "))
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	routeData := map[string]string{"controller": controllerName, "action": actionName}
	if id, ok := vars["id"]; ok {
		routeData["id"] = id
	}
	var session pipeline.Session
	if rs != nil {
		session = rs.Session()
	}
	ctx := &ControllerContext{
		Request:        req,
		Response:       w,
		Session:        session,
		RouteData:      routeData,
		ViewData:       make(map[string]interface{}),
		Settings:       r.app.settings,
		ControllerName: controllerName,
		ActionName:     action.Name,
		Controller:     controller,
		app:            r.app,
	}
	ctx.User = r.app.user(req, session)

	if err := r.invoke(ctx, action); err != nil {
		r.logger.Printf("Request for %s failed: %s", req.URL.Path, err)
		if resp, ok := w.(*response); ok && !resp.wroteHeader {
			resp.WriteHeader(http.StatusInternalServerError)
		}
		if rs != nil {
			rs.err = &pipeline.PipelineError{StatusCode: http.StatusInternalServerError, Path: req.URL.Path, Cause: err}
		}
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func findAction(c Controller, name string) (Action, bool) {
	for _, a := range c.Actions() {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return Action{}, false
}

// invoke runs the action filters, the action, the result filters, and the result. It returns
// an error only if the action or result failed and no filter handled the failure.
func (r *runtime) invoke(ctx *ControllerContext, action Action) error {
	filters := r.app.filtersFor(ctx, r.currentObservers())
	var actionFilters []ActionFilter
	var resultFilters []ResultFilter
	for _, f := range filters {
		if af, ok := f.(ActionFilter); ok {
			actionFilters = append(actionFilters, af)
		}
		if rf, ok := f.(ResultFilter); ok {
			resultFilters = append(resultFilters, rf)
		}
	}

	executing := &ActionExecutingContext{ControllerContext: ctx}
	ran := 0
	for _, f := range actionFilters {
		f.OnActionExecuting(executing)
		ran++
		if executing.Result != nil {
			break
		}
	}
	executed := &ActionExecutedContext{ControllerContext: ctx}
	if executing.Result != nil {
		executed.Result = executing.Result
		executed.Canceled = true
	} else {
		executed.Result, executed.Err = r.runAction(ctx, action)
	}
	for j := ran - 1; j >= 0; j-- {
		actionFilters[j].OnActionExecuted(executed)
	}
	if executed.Err != nil && !executed.ErrHandled {
		return executed.Err
	}
	if executed.Result == nil {
		return nil
	}

	resultExecuting := &ResultExecutingContext{ControllerContext: ctx, Result: executed.Result}
	for _, f := range resultFilters {
		f.OnResultExecuting(resultExecuting)
	}
	resultExecuted := &ResultExecutedContext{ControllerContext: ctx, Result: resultExecuting.Result}
	if resultExecuting.Cancel {
		resultExecuted.Canceled = true
	} else {
		resultExecuted.Err = safely(func() error { return resultExecuting.Result.Execute(ctx) })
	}
	for j := len(resultFilters) - 1; j >= 0; j-- {
		resultFilters[j].OnResultExecuted(resultExecuted)
	}
	return resultExecuted.Err
}

// runAction checks authorization and antiforgery requirements, then calls the action.
func (r *runtime) runAction(ctx *ControllerContext, action Action) (Result, error) {
	if action.Authorize && ctx.User == "" {
		return Status(http.StatusUnauthorized), nil
	}
	if action.ValidateAntiForgery && ctx.Request.Method != http.MethodGet {
		if err := validateAntiForgery(ctx.Request); err != nil {
			return &StatusResult{StatusCode: http.StatusBadRequest, Description: err.Error()}, nil
		}
	}
	var result Result
	err := safely(func() error {
		var err error
		result, err = action.Handler(ctx)
		return err
	})
	return result, err
}

// safely calls fn, converting a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
		}
	}()
	return fn()
}
