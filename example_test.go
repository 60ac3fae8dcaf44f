package bserve_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"time"

	"github.com/advdv/bserve"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

func Example() {
	rt := bserve.NewRouter()

	rt.Get("/items/", func(_ *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
		id := path.Base(r.URL.Path)
		if id == "items" {
			return bserve.NewError(bserve.CodeBadRequest, errors.New("missing id"))
		}

		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(map[string]string{
			"id":   id,
			"name": "Example Item",
		})
	}, "get-item")

	// Generate URL by route name
	url, _ := rt.Reverse("get-item", "123")
	fmt.Println("URL:", url)

	// Test the handler
	app := bserve.NewApplication(rt, bserve.WithZap(zap.NewNop()))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	app.ServeHTTP(rec, req)

	fmt.Println("Status:", rec.Code)
	// Output:
	// URL: /items/123
	// Status: 200
}

func ExampleNewError() {
	rt := bserve.NewRouter()

	rt.Get("/protected", func(_ *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
		token := r.Header.Get("Authorization")
		if token == "" {
			return bserve.NewError(bserve.CodeUnauthorized, errors.New("missing token"))
		}
		if token != "Bearer secret" {
			return bserve.NewError(bserve.CodeForbidden, errors.New("invalid token"))
		}
		fmt.Fprint(w, "welcome")
		return nil
	})

	app := bserve.NewApplication(rt, bserve.WithZap(zap.NewNop()))

	// Request without token
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	app.ServeHTTP(rec, req)
	fmt.Println("No token:", rec.Code)

	// Request with invalid token
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	app.ServeHTTP(rec, req)
	fmt.Println("Bad token:", rec.Code)

	// Request with valid token
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer secret")
	app.ServeHTTP(rec, req)
	fmt.Println("Valid token:", rec.Code)
	// Output:
	// No token: 401
	// Bad token: 403
	// Valid token: 200
}

func ExampleRouter_Use() {
	rt := bserve.NewRouter()

	rt.Use(bserve.AdapterFunc(func(next bserve.Handler) bserve.Handler {
		return bserve.HandlerFunc(func(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
			// Set header before calling next handler
			c.SetPersistentHeader(w, "X-Request-ID", "req-123")
			return next.ServeBHTTP(c, w, r)
		})
	}))

	rt.Get("/ping", func(_ *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
		fmt.Fprint(w, "pong")
		return nil
	})

	app := bserve.NewApplication(rt, bserve.WithZap(zap.NewNop()))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	app.ServeHTTP(rec, req)

	fmt.Println("Body:", rec.Body.String())
	fmt.Println("Request ID:", rec.Header().Get("X-Request-ID"))

	// The header survives when the response is replaced by an error
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/missing", nil)
	app.ServeHTTP(rec, req)
	fmt.Println("Not found:", rec.Code, rec.Header().Get("X-Request-ID"))
	// Output:
	// Body: pong
	// Request ID: req-123
	// Not found: 404 req-123
}

func ExampleResponseWriter_Reset() {
	rt := bserve.NewRouter()

	rt.Get("/process", func(_ *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
		// Start writing a response
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "Starting process...")

		// Simulate an error occurring mid-response
		if r.URL.Query().Get("fail") == "true" {
			// Return an error - buffer will be reset automatically
			return bserve.NewError(bserve.CodeInternalServerError, errors.New("process failed"))
		}

		fmt.Fprint(w, " Done!")
		return nil
	})

	app := bserve.NewApplication(rt, bserve.WithZap(zap.NewNop()))

	// Successful request
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/process", nil)
	app.ServeHTTP(rec, req)
	fmt.Println("Success:", rec.Body.String())

	// Failed request - partial response is discarded
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/process?fail=true", nil)
	app.ServeHTTP(rec, req)
	fmt.Println("Failure:", rec.Code)
	// Output:
	// Success: Starting process... Done!
	// Failure: 500
}

func ExampleNewJSONReader() {
	type order struct {
		Sku string `json:"sku"`
	}

	rt := bserve.NewRouter()
	rt.With(bserve.ReadBody(bserve.NewJSONReader[order](1024))).
		Post("/orders", func(c *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
			o, _ := bserve.BodyAs[order](c)
			fmt.Fprintf(w, "ordered %s", o.Sku)
			return nil
		})

	app := bserve.NewApplication(rt, bserve.WithZap(zap.NewNop()))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(`{"sku":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	app.ServeHTTP(rec, req)

	fmt.Println(rec.Body.String())
	// Output:
	// ordered abc
}

func ExampleDeadline() {
	rt := bserve.NewRouter()
	rt.With(bserve.Deadline(10*time.Millisecond)).
		Get("/slow", func(_ *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
			time.Sleep(50 * time.Millisecond)
			fmt.Fprint(w, "too late")
			return nil
		})

	app := bserve.NewApplication(rt, bserve.WithZap(zap.NewNop()))
	rec := httptest.NewRecorder()
	app.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	fmt.Println(rec.Code)
	// Output:
	// 408
}

func ExampleCodeOf() {
	// Create an error with a specific code
	err := bserve.NewError(bserve.CodeNotFound, errors.New("user not found"))
	fmt.Println("Code:", bserve.CodeOf(err))

	// Wrapped errors preserve the code
	wrapped := fmt.Errorf("handler failed: %w", err)
	fmt.Println("Wrapped code:", bserve.CodeOf(wrapped))

	// Other errors return CodeUnknown
	plainErr := errors.New("something went wrong")
	fmt.Println("Plain error code:", bserve.CodeOf(plainErr))
	// Output:
	// Code: 404
	// Wrapped code: 404
	// Plain error code: 0
}
