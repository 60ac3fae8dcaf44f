package bserve

import (
	"net/http"
	"strings"
)

// Method is a set of request methods a route accepts.
type Method uint16

// Methods defined by RFC 9110 and RFC 5789.
const (
	MethodConnect Method = 1 << iota
	MethodDelete
	MethodGet
	MethodHead
	MethodOptions
	MethodPatch
	MethodPost
	MethodPut
	MethodTrace

	AnyMethod = MethodConnect | MethodDelete | MethodGet | MethodHead | MethodOptions |
		MethodPatch | MethodPost | MethodPut | MethodTrace
)

var methodNames = map[string]Method{
	http.MethodConnect: MethodConnect,
	http.MethodDelete:  MethodDelete,
	http.MethodGet:     MethodGet,
	http.MethodHead:    MethodHead,
	http.MethodOptions: MethodOptions,
	http.MethodPatch:   MethodPatch,
	http.MethodPost:    MethodPost,
	http.MethodPut:     MethodPut,
	http.MethodTrace:   MethodTrace,
}

// ParseMethod normalizes a request method into its flag. Unknown methods return 0, which no route accepts.
func ParseMethod(s string) Method {
	if m, ok := methodNames[s]; ok {
		return m
	}

	return methodNames[strings.ToUpper(s)]
}

// Has reports whether every flag in o is also in m. The zero method is never contained.
func (m Method) Has(o Method) bool {
	return o != 0 && m&o == o
}

func (m Method) String() string {
	if m == AnyMethod {
		return "*"
	}

	var names []string
	for _, name := range []string{
		http.MethodConnect, http.MethodDelete, http.MethodGet, http.MethodHead, http.MethodOptions,
		http.MethodPatch, http.MethodPost, http.MethodPut, http.MethodTrace,
	} {
		if m.Has(methodNames[name]) {
			names = append(names, name)
		}
	}

	return strings.Join(names, "|")
}
