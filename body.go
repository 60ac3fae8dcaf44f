package bserve

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// DefaultBodyLimit is the maximum number of body bytes a reader accepts when no limit is configured.
const DefaultBodyLimit = 100 << 10

const readChunkSize = 32 << 10

// ErrEntityTooLarge is returned by body readers when the body exceeds their limit.
var ErrEntityTooLarge = NewJSONError(CodeRequestEntityTooLarge, errors.New("request entity too large"))

// MalformedRequest returns the renderable error for a body that could not be decoded.
func MalformedRequest(cause error) *Error {
	return NewJSONError(CodeUnprocessableEntity, errors.Wrap(cause, "malformed request")).
		WithMessage("malformed request")
}

// BodyReader decodes the request body into the [Context].
type BodyReader interface {
	ShouldRead(c *Context, r *http.Request) bool
	Read(c *Context, r *http.Request) error
}

// ReadBody turns a body reader into an adapter. The body is read before the wrapped handler runs, unless
// the reader declines or an earlier reader already consumed it.
func ReadBody(br BodyReader) Adapter {
	return AdapterFunc(func(next Handler) Handler {
		return HandlerFunc(func(c *Context, w ResponseWriter, r *http.Request) error {
			if !c.BodyConsumed() && br.ShouldRead(c, r) {
				if err := br.Read(c, r); err != nil {
					return err
				}
			}

			return next.ServeBHTTP(c, w, r)
		})
	})
}

// StreamReader decodes the body chunk by chunk in arrival order and folds the results. Decode must copy the
// chunk if it retains it.
type StreamReader[T any] struct {
	// Limit on the number of body bytes, [DefaultBodyLimit] when zero.
	Limit int64
	// ContentTypes are case-insensitive prefixes of the Content-Type header. Empty means any.
	ContentTypes []string

	Initial func() T
	Decode  func(chunk []byte) (T, error)
	Concat  func(acc, v T) T
}

// accumulator is the state of a single read, it never outlives it.
type accumulator[T any] struct {
	received int64
	limit    int64
	acc      T
}

// ShouldRead reports whether the content type matches.
func (sr *StreamReader[T]) ShouldRead(_ *Context, r *http.Request) bool {
	return hasContentType(r, sr.ContentTypes)
}

// Read consumes the body and stores the folded value on the context.
func (sr *StreamReader[T]) Read(c *Context, r *http.Request) error {
	v, err := sr.consume(r)
	if err != nil {
		return err
	}

	c.SetBody(v)

	return nil
}

func (sr *StreamReader[T]) consume(r *http.Request) (T, error) {
	acc := accumulator[T]{limit: sr.Limit}
	if acc.limit <= 0 {
		acc.limit = DefaultBodyLimit
	}

	if sr.Initial != nil {
		acc.acc = sr.Initial()
	}

	if r.Body == nil {
		return acc.acc, nil
	}

	fail := func(err error) (T, error) {
		_ = r.Body.Close()

		var zero T
		return zero, err
	}

	if r.ContentLength > acc.limit {
		return fail(ErrEntityTooLarge)
	}

	buf := make([]byte, readChunkSize)
	body := io.LimitReader(r.Body, acc.limit+1)

	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			acc.received += int64(n)
			if acc.received > acc.limit {
				return fail(ErrEntityTooLarge)
			}

			v, err := sr.Decode(buf[:n])
			if err != nil {
				return fail(MalformedRequest(err))
			}

			acc.acc = sr.Concat(acc.acc, v)
		}

		if errors.Is(rerr, io.EOF) {
			return acc.acc, nil
		} else if rerr != nil {
			return fail(errors.Wrap(rerr, "failed to read request body"))
		}
	}
}

// BufferedReader collects the whole body and decodes it once.
type BufferedReader[T any] struct {
	Limit        int64
	ContentTypes []string
	Decode       func(data []byte) (T, error)
}

// ShouldRead reports whether the content type matches.
func (br *BufferedReader[T]) ShouldRead(_ *Context, r *http.Request) bool {
	return hasContentType(r, br.ContentTypes)
}

// Read consumes the body and stores the decoded value on the context.
func (br *BufferedReader[T]) Read(c *Context, r *http.Request) error {
	raw := StreamReader[[]byte]{
		Limit:  br.Limit,
		Decode: func(chunk []byte) ([]byte, error) { return chunk, nil },
		Concat: func(acc, v []byte) []byte { return append(acc, v...) },
	}

	data, err := raw.consume(r)
	if err != nil {
		return err
	}

	v, err := br.Decode(data)
	if err != nil {
		return MalformedRequest(err)
	}

	c.SetBody(v)

	return nil
}

// NewJSONReader reads "application/json" bodies into a T.
func NewJSONReader[T any](limit int64) *BufferedReader[T] {
	return &BufferedReader[T]{
		Limit:        limit,
		ContentTypes: []string{"application/json"},
		Decode: func(data []byte) (v T, err error) {
			return v, json.Unmarshal(data, &v)
		},
	}
}

// NewYAMLReader reads YAML bodies into a T.
func NewYAMLReader[T any](limit int64) *BufferedReader[T] {
	return &BufferedReader[T]{
		Limit:        limit,
		ContentTypes: []string{"application/yaml", "application/x-yaml", "text/yaml"},
		Decode: func(data []byte) (v T, err error) {
			return v, yaml.Unmarshal(data, &v)
		},
	}
}

// NewRawJSONReader validates "application/json" bodies and stores them as a [gjson.Result] for path queries
// without a schema.
func NewRawJSONReader(limit int64) *BufferedReader[gjson.Result] {
	return &BufferedReader[gjson.Result]{
		Limit:        limit,
		ContentTypes: []string{"application/json"},
		Decode: func(data []byte) (gjson.Result, error) {
			if !gjson.ValidBytes(data) {
				return gjson.Result{}, errors.New("invalid json")
			}

			return gjson.ParseBytes(data), nil
		},
	}
}

// NewTextReader reads "text/plain" bodies into a string.
func NewTextReader(limit int64) *StreamReader[string] {
	return &StreamReader[string]{
		Limit:        limit,
		ContentTypes: []string{"text/plain"},
		Initial:      func() string { return "" },
		Decode:       func(chunk []byte) (string, error) { return string(chunk), nil },
		Concat:       func(acc, v string) string { return acc + v },
	}
}

func hasContentType(r *http.Request, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}

	ct := strings.ToLower(r.Header.Get("Content-Type"))
	for _, p := range prefixes {
		if strings.HasPrefix(ct, p) {
			return true
		}
	}

	return false
}
