package bserve

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Payload renders the body of a [Response]. It sets the content headers and then writes the status and body.
type Payload interface {
	RenderPayload(w http.ResponseWriter, status int) error
}

// Response is a [Handler] that writes a fixed status, headers and payload. A nil payload writes no body.
type Response struct {
	Status  int
	Header  http.Header
	Payload Payload
}

// JSON returns a response with v encoded as JSON.
func JSON(status int, v any) *Response {
	return &Response{Status: status, Payload: JSONPayload(v)}
}

// YAML returns a response with v encoded as YAML.
func YAML(status int, v any) *Response {
	return &Response{Status: status, Payload: YAMLPayload(v)}
}

// Text returns a plain text response.
func Text(status int, s string) *Response {
	return &Response{Status: status, Payload: TextPayload(s)}
}

// HTML returns an HTML response.
func HTML(status int, s string) *Response {
	return &Response{Status: status, Payload: HTMLPayload(s)}
}

// Form returns a response with the values encoded as application/x-www-form-urlencoded.
func Form(status int, v url.Values) *Response {
	return &Response{Status: status, Payload: FormPayload(v)}
}

// WithHeader sets a header on the response and returns it.
func (res *Response) WithHeader(key, value string) *Response {
	if res.Header == nil {
		res.Header = http.Header{}
	}

	res.Header.Set(key, value)

	return res
}

// ServeBHTTP writes the response. Headers with no value are skipped.
func (res *Response) ServeBHTTP(_ *Context, w ResponseWriter, _ *http.Request) error {
	for k, vs := range res.Header {
		if len(vs) == 0 || (len(vs) == 1 && vs[0] == "") {
			continue
		}

		w.Header()[k] = append([]string(nil), vs...)
	}

	status := res.Status
	if status == 0 {
		status = http.StatusOK
	}

	if res.Payload == nil {
		w.WriteHeader(status)
		return nil
	}

	return res.Payload.RenderPayload(w, status)
}

// serialized is a payload that is fully encoded before anything is written, so an encoding failure leaves
// the response untouched.
type serialized struct {
	contentType string
	marshal     func() ([]byte, error)
}

func (p serialized) RenderPayload(w http.ResponseWriter, status int) error {
	b, err := p.marshal()
	if err != nil {
		return errors.Wrapf(err, "failed to serialize %s payload", p.contentType)
	}

	w.Header().Set("Content-Type", p.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	w.WriteHeader(status)

	if _, err := w.Write(b); err != nil {
		return errors.Wrap(err, "failed to write payload")
	}

	return nil
}

func raw(contentType string, b []byte) Payload {
	return serialized{contentType: contentType, marshal: func() ([]byte, error) { return b, nil }}
}

// JSONPayload encodes v with encoding/json.
func JSONPayload(v any) Payload {
	return serialized{contentType: "application/json; charset=utf-8", marshal: func() ([]byte, error) {
		return json.Marshal(v)
	}}
}

// YAMLPayload encodes v as YAML.
func YAMLPayload(v any) Payload {
	return serialized{contentType: "application/yaml; charset=utf-8", marshal: func() ([]byte, error) {
		return yaml.Marshal(v)
	}}
}

// FormPayload encodes the values as a url-encoded form.
func FormPayload(v url.Values) Payload {
	return serialized{contentType: "application/x-www-form-urlencoded", marshal: func() ([]byte, error) {
		return []byte(v.Encode()), nil
	}}
}

// TextPayload is plain UTF-8 text.
func TextPayload(s string) Payload { return raw("text/plain; charset=utf-8", []byte(s)) }

// HTMLPayload is an HTML document.
func HTMLPayload(s string) Payload { return raw("text/html; charset=utf-8", []byte(s)) }

// XMLPayload is an already encoded XML document.
func XMLPayload(s string) Payload { return raw("application/xml; charset=utf-8", []byte(s)) }

// RawPayload is opaque binary data.
func RawPayload(b []byte) Payload { return raw("application/octet-stream", b) }

// StreamPayload copies r to the response. There is no Content-Length and a read failure surfaces after the
// status was written.
func StreamPayload(contentType string, r io.Reader) Payload {
	return stream{contentType: contentType, r: r}
}

type stream struct {
	contentType string
	r           io.Reader
}

func (p stream) RenderPayload(w http.ResponseWriter, status int) error {
	w.Header().Set("Content-Type", p.contentType)
	w.WriteHeader(status)

	if _, err := io.Copy(w, p.r); err != nil {
		return errors.Wrap(err, "failed to stream payload")
	}

	return nil
}

var _ Handler = &Response{}
