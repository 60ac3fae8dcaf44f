package bapp

import (
	"github.com/advdv/bserve"
)

// Router is the router routing functions receive.
type Router = bserve.Router

// NewRouter creates the application router. Unmatched requests get a JSON 404 since bapp
// services speak JSON.
func NewRouter() *Router {
	return bserve.NewRouter(bserve.WithNotFound(bserve.NotFoundJSON))
}
