// Package sampleapp is a small web application that the host is exercised against. Importing
// it registers it under the name "SampleApp"; its content lives in the site directory.
package sampleapp

import (
	"net/http"
	"strconv"

	"github.com/integrationkit/apphost/webapp"

	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

// Name is the name the application is registered under.
const Name = "SampleApp"

// SiteDir is the application directory, relative to the module root.
const SiteDir = "sampleapp/site"

const (
	// CounterSessionKey is the session value incremented by DoStuffWithSessionAndCookies.
	CounterSessionKey = "myIncrementingSessionItem"
	// CookieName is the cookie set by DoStuffWithSessionAndCookies.
	CookieName = "mycookie"
)

func init() {
	webapp.RegisterApplication(Name, configure)
}

func configure(app *webapp.Application) error {
	app.AddController("Home", func() webapp.Controller {
		return &HomeController{AnimalSoundProvider: SiteAnimalSoundProvider{}}
	})
	app.Handle("/health", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	app.Logger().Printf("Sample application configured")
	return nil
}

// AnimalSoundProvider knows what animals say.
type AnimalSoundProvider interface {
	GetSoundFromAnimalType(animalType string) string
}

// SiteAnimalSoundProvider is the provider the application uses unless a test replaces it.
type SiteAnimalSoundProvider struct{}

func (SiteAnimalSoundProvider) GetSoundFromAnimalType(animalType string) string {
	switch animalType {
	case "Dog":
		return "Woof!"
	case "Cat":
		return "Meooow..."
	default:
		return "Caplonk!"
	}
}

// HomeController serves the application's pages.
type HomeController struct {
	AnimalSoundProvider AnimalSoundProvider
}

func (c *HomeController) Actions() []webapp.Action {
	return []webapp.Action{
		{Name: "Index", Handler: c.Index},
		{Name: "About", Handler: c.About},
		{Name: "DoStuffWithSessionAndCookies", Handler: c.DoStuffWithSessionAndCookies},
		{Name: "MakeAnimalSound", Handler: c.MakeAnimalSound},
		{Name: "SecretAction", Handler: c.SecretAction, Authorize: true},
		{Name: "Login", Handler: c.Login, Verbs: []string{http.MethodPost}},
		{Name: "Echo", Handler: c.Echo, Verbs: []string{http.MethodPost}},
		{Name: "Form", Handler: c.Form, Verbs: []string{http.MethodGet}},
		{Name: "Submit", Handler: c.Submit, Verbs: []string{http.MethodPost}, ValidateAntiForgery: true},
	}
}

func (c *HomeController) Index(ctx *webapp.ControllerContext) (webapp.Result, error) {
	ctx.ViewData["Title"] = "Home"
	ctx.ViewData["Message"] = "Welcome to the sample application!"
	ctx.ViewData["CustomMessage"] = ctx.Setting("TestMessage")
	return webapp.View(nil), nil
}

func (c *HomeController) About(ctx *webapp.ControllerContext) (webapp.Result, error) {
	ctx.ViewData["Title"] = "About"
	return webapp.View(nil), nil
}

// DoStuffWithSessionAndCookies counts the calls made in a session and sets a cookie.
func (c *HomeController) DoStuffWithSessionAndCookies(ctx *webapp.ControllerContext) (webapp.Result, error) {
	n := ctx.Session.Get(CounterSessionKey).IntValue() + 1
	ctx.Session.Set(CounterSessionKey, ldvalue.Int(n))
	http.SetCookie(ctx.Response, &http.Cookie{Name: CookieName, Value: "myval"})
	return webapp.Content("OK"), nil
}

func (c *HomeController) MakeAnimalSound(ctx *webapp.ControllerContext) (webapp.Result, error) {
	animal := ctx.ID()
	ctx.ViewData["Title"] = "Animal sounds"
	ctx.ViewData["Animal"] = animal
	ctx.ViewData["Sound"] = c.AnimalSoundProvider.GetSoundFromAnimalType(animal)
	return webapp.ViewNamed("AnimalSound", nil), nil
}

func (c *HomeController) SecretAction(ctx *webapp.ControllerContext) (webapp.Result, error) {
	return webapp.Content("Hello, you're logged in as " + ctx.User), nil
}

// Login signs the session in as the posted UserName.
func (c *HomeController) Login(ctx *webapp.ControllerContext) (webapp.Result, error) {
	user := ctx.Request.PostFormValue("UserName")
	if user == "" {
		return webapp.Status(http.StatusBadRequest), nil
	}
	ctx.Session.Set(webapp.SessionUserKey, ldvalue.String(user))
	return webapp.Redirect("/home/secretaction"), nil
}

// Echo returns the posted Field value, or the number of posted fields if there is none.
func (c *HomeController) Echo(ctx *webapp.ControllerContext) (webapp.Result, error) {
	if err := ctx.Request.ParseForm(); err != nil {
		return nil, err
	}
	if v := ctx.Request.PostForm.Get("Field"); v != "" {
		return webapp.Content(v), nil
	}
	return webapp.Content(strconv.Itoa(len(ctx.Request.PostForm))), nil
}

func (c *HomeController) Form(ctx *webapp.ControllerContext) (webapp.Result, error) {
	ctx.ViewData["Title"] = "Form"
	return webapp.View(nil), nil
}

func (c *HomeController) Submit(ctx *webapp.ControllerContext) (webapp.Result, error) {
	return webapp.Content("Submitted " + ctx.Request.PostFormValue("Name")), nil
}
