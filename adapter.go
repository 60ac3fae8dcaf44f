package bserve

// Adapter wraps a handler to add cross-cutting behavior.
type Adapter interface {
	Adapt(h Handler) Handler
}

// AdapterFunc allows a function to implement [Adapter].
type AdapterFunc func(Handler) Handler

// Adapt implements [Adapter].
func (f AdapterFunc) Adapt(h Handler) Handler { return f(h) }

// Adapters is a list of adapters that is itself an adapter, composed like [Chain].
type Adapters []Adapter

// Adapt implements [Adapter].
func (a Adapters) Adapt(h Handler) Handler { return Chain(h, a...) }

// Chain takes the inner handler h and wraps it with adapters. The order is that of the Gorilla and Chi router. That
// is: the adapter provided first is called first and is the "outer" most wrapping, the adapter provided last
// will be the "inner most" wrapping (closest to the handler).
func Chain(h Handler, a ...Adapter) Handler {
	if len(a) < 1 {
		return h
	}

	wrapped := h
	for i := len(a) - 1; i >= 0; i-- {
		wrapped = a[i].Adapt(wrapped)
	}

	return wrapped
}
