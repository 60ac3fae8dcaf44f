package bserve

import (
	"net/http"

	"github.com/cockroachdb/errors"
)

// Default renderable errors. They can be returned from any handler.
var (
	// NotFound is rendered when no route matches the request.
	NotFound = NewError(CodeNotFound, errors.New("404 page not found"))

	// NotFoundJSON renders the same as [NotFound] but as a JSON object.
	NotFoundJSON = NewJSONError(CodeNotFound, errors.New("404 page not found"))

	// InternalServerError is rendered for errors that cannot render themselves.
	InternalServerError = NewError(CodeInternalServerError, errors.New("500 internal server error"))

	// RequestTimeout is returned by the deadline guard when a handler did not finish in time.
	RequestTimeout = NewError(CodeRequestTimeout, errors.New("408 request timeout"))

	// BadRequest is rendered for requests that can never be routed, such as "*".
	BadRequest = NewError(CodeBadRequest, errors.New("400 bad request"))
)

// RedirectError is a renderable error that redirects the client.
type RedirectError struct {
	URL  string
	Code int
}

// Redirect returns a renderable error that redirects to url with the given status code. It can be returned
// from a handler or registered as a handler itself.
func Redirect(url string, code int) *RedirectError {
	return &RedirectError{URL: url, Code: code}
}

func (e *RedirectError) Error() string {
	return http.StatusText(e.Code) + ": " + e.URL
}

// ServeBHTTP writes the Location header and status.
func (e *RedirectError) ServeBHTTP(_ *Context, w ResponseWriter, r *http.Request) error {
	http.Redirect(w, r, e.URL, e.Code)
	return nil
}

var _ RenderableError = &RedirectError{}
