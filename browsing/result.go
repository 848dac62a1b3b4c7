package browsing

import (
	"strings"

	"github.com/integrationkit/apphost/pipeline"

	"github.com/PuerkitoBio/goquery"
)

const antiForgeryFieldName = "__RequestVerificationToken"

// RequestResult is what a browsing session observed of one request.
type RequestResult struct {
	ResponseText string
	Response     pipeline.Response
	// ActionExecutedContext and ResultExecutedContext are the contexts the pipeline reported
	// for the last action and result it executed, or nil if it executed none.
	ActionExecutedContext interface{}
	ResultExecutedContext interface{}
}

// StatusCode returns the response status, or 0 if no response was captured.
func (r *RequestResult) StatusCode() int {
	if r.Response == nil {
		return 0
	}
	return r.Response.StatusCode()
}

// AntiForgeryToken returns the value of the antiforgery hidden field in the response, or ""
// if there is none.
func (r *RequestResult) AntiForgeryToken() string {
	token, _ := ExtractAntiForgeryToken(r.ResponseText)
	return token
}

// ExtractAntiForgeryToken finds the first <input name="__RequestVerificationToken"> in an HTML
// document and returns its value.
func ExtractAntiForgeryToken(html string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", false
	}
	return doc.Find(`input[name="` + antiForgeryFieldName + `"]`).First().Attr("value")
}
