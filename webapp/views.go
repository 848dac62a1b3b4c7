package webapp

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// AntiForgeryFieldName is the name of both the antiforgery form field and its cookie.
const AntiForgeryFieldName = "__RequestVerificationToken"

// ViewPage is the data a view template executes with.
type ViewPage struct {
	Model      interface{}
	ViewData   map[string]interface{}
	Controller string
	Action     string
	// AntiForgeryToken, called from a template as {{call .AntiForgeryToken}}, emits the hidden
	// antiforgery field and makes sure the response sets the matching cookie.
	AntiForgeryToken func() template.HTML

	ctx *ControllerContext
}

// Setting returns an application setting, for use in templates as {{.Setting "Key"}}.
func (p *ViewPage) Setting(key string) string {
	return p.ctx.Setting(key)
}

func (p *ViewPage) antiForgeryField() template.HTML {
	token := antiForgeryToken(p.ctx)
	return template.HTML(fmt.Sprintf(`<input name="%s" type="hidden" value="%s" />`, //nolint:gosec
		AntiForgeryFieldName, template.HTMLEscapeString(token)))
}

// antiForgeryToken returns the request's antiforgery cookie value, issuing a new cookie if
// the request has none.
func antiForgeryToken(ctx *ControllerContext) string {
	if c, err := ctx.Request.Cookie(AntiForgeryFieldName); err == nil && c.Value != "" {
		return c.Value
	}
	for _, c := range readSetCookies(ctx.Response.Header()) {
		if c.Name == AntiForgeryFieldName {
			return c.Value
		}
	}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	http.SetCookie(ctx.Response, &http.Cookie{
		Name:     AntiForgeryFieldName,
		Value:    token,
		Path:     ctx.app.virtualPath,
		HttpOnly: true,
	})
	return token
}

func validateAntiForgery(r *http.Request) error {
	cookie, err := r.Cookie(AntiForgeryFieldName)
	if err != nil || cookie.Value == "" {
		return errors.New("the antiforgery cookie is not present")
	}
	field := r.PostFormValue(AntiForgeryFieldName)
	if field == "" {
		return errors.New("the antiforgery form field is not present")
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(field)) != 1 {
		return errors.New("the antiforgery token does not match")
	}
	return nil
}

// viewEngine loads templates from <app>/views/<controller>/<view>.html, with templates in
// views/shared available to all of them.
type viewEngine struct {
	root  string
	cache map[string]*template.Template
	lock  sync.Mutex
}

func newViewEngine(appDir string) *viewEngine {
	return &viewEngine{root: filepath.Join(appDir, "views"), cache: make(map[string]*template.Template)}
}

func (v *viewEngine) render(w io.Writer, controller, view string, page *ViewPage) error {
	t, err := v.lookup(controller, view)
	if err != nil {
		return err
	}
	return t.Execute(w, page)
}

func (v *viewEngine) lookup(controller, view string) (*template.Template, error) {
	key := strings.ToLower(controller + "/" + view)
	v.lock.Lock()
	defer v.lock.Unlock()
	if t, ok := v.cache[key]; ok {
		return t, nil
	}
	path, err := v.find(controller, view)
	if err != nil {
		return nil, err
	}
	t, err := template.ParseFiles(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse view %q: %w", path, err)
	}
	shared, _ := filepath.Glob(filepath.Join(v.root, "shared", "*.html"))
	if len(shared) > 0 {
		if t, err = t.ParseFiles(shared...); err != nil {
			return nil, fmt.Errorf("failed to parse shared views: %w", err)
		}
	}
	t = t.Lookup(filepath.Base(path))
	v.cache[key] = t
	return t, nil
}

// find locates a view file, matching the controller and view names case-insensitively.
func (v *viewEngine) find(controller, view string) (string, error) {
	dir, err := findEntry(v.root, controller, true)
	if err != nil {
		return "", fmt.Errorf("no views for controller %q: %w", controller, err)
	}
	file, err := findEntry(dir, view+".html", false)
	if err != nil {
		return "", fmt.Errorf("view %q not found for controller %q: %w", view, controller, err)
	}
	return file, nil
}

func findEntry(dir, name string, wantDir bool) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.IsDir() == wantDir && strings.EqualFold(e.Name(), name) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", os.ErrNotExist
}
