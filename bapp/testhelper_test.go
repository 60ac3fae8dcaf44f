package bapp_test

import (
	"encoding/json"
	"net/http"
	"path"
	"testing"
	"time"

	"github.com/advdv/bserve"
	"github.com/advdv/bserve/bapp"
	"github.com/advdv/bserve/bapp/bapptest"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// TestEnv is a test environment with app-specific fields beyond BaseEnvironment.
type TestEnv struct {
	bapp.BaseEnvironment
	MainTableName string `env:"MAIN_TABLE_NAME,required"`
}

var errUnsupported = errors.New("expected a JSON body")

// Item is the body of the item endpoints.
type Item struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Handlers demonstrates runtime injection into handler constructors.
type Handlers struct {
	rt *bapp.Runtime[TestEnv]
}

func NewHandlers(rt *bapp.Runtime[TestEnv]) *Handlers {
	return &Handlers{rt: rt}
}

func (h *Handlers) GetItem(c *bserve.Context, w bserve.ResponseWriter, r *http.Request) error {
	id := path.Base(c.URL().Path)

	selfURL, err := h.rt.Reverse("get-item", id)
	if err != nil {
		return err
	}

	bapp.Log(r.Context()).Info("getting item", zap.String("id", id))

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"id":         id,
		"table":      h.rt.Env().MainTableName,
		"self_url":   selfURL,
		"request_id": c.RequestID(),
	})
}

func (h *Handlers) CreateItem(c *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
	item, ok := bserve.BodyAs[Item](c)
	if !ok {
		return bserve.NewJSONError(bserve.CodeUnsupportedMediaType, errUnsupported)
	}

	c.Logger().Info("creating item")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	return json.NewEncoder(w).Encode(item)
}

func (h *Handlers) Slow(_ *bserve.Context, w bserve.ResponseWriter, _ *http.Request) error {
	time.Sleep(500 * time.Millisecond)
	w.WriteHeader(http.StatusOK)
	return nil
}

// routing registers the test routes.
func routing(rt *bapp.Router, h *Handlers) {
	rt.Get("/items/", h.GetItem, "get-item")
	rt.With(bserve.ReadBody(bserve.NewJSONReader[Item](h.rt.BodyLimit()))).
		Post("/items", h.CreateItem)
	rt.Get("/slow", h.Slow)
	rt.HandleStd("/docs/", http.StripPrefix("/docs", http.FileServer(http.Dir("."))))
}

// setTestEnvForTestEnv is a convenience that calls SetBaseEnv and sets the TestEnv fields.
func setTestEnvForTestEnv(t *testing.T, port int) *bapptest.Env {
	t.Helper()
	env := bapptest.SetBaseEnv(t, port)
	t.Setenv("MAIN_TABLE_NAME", "test-table")
	return env
}
