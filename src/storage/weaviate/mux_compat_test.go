// The fixtures in this package register routes with the "METHOD /path"
// and "{wildcard}" ServeMux patterns introduced in Go 1.22. Under the
// Go 1.21 toolchain the standard mux reads those strings as host-based
// patterns and never matches, so testMux reimplements the small pattern
// subset the fixtures rely on: method dispatch (HEAD falls back to GET),
// exact and trailing-slash prefix paths, single-segment wildcards with
// pathValue lookup, 405 for a matched path with the wrong method, and
// 404 otherwise.
package weaviate_test

import (
	"context"
	"net/http"
	"strings"
)

type testMux struct {
	routes []testRoute
}

type testRoute struct {
	method   string
	segments []string
	prefix   bool
	handler  http.HandlerFunc
}

func newTestMux() *testMux {
	return &testMux{}
}

func (m *testMux) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	method, path, found := strings.Cut(pattern, " ")
	if !found {
		method, path = "", pattern
	}
	prefix := strings.HasSuffix(path, "/")
	var segments []string
	if trimmed := strings.Trim(path, "/"); trimmed != "" {
		segments = strings.Split(trimmed, "/")
	}
	m.routes = append(m.routes, testRoute{
		method:   method,
		segments: segments,
		prefix:   prefix,
		handler:  handler,
	})
}

func (rt testRoute) match(path string) (map[string]string, bool) {
	var got []string
	if trimmed := strings.Trim(path, "/"); trimmed != "" {
		got = strings.Split(trimmed, "/")
	}
	if rt.prefix {
		if len(got) < len(rt.segments) {
			return nil, false
		}
	} else if len(got) != len(rt.segments) {
		return nil, false
	}
	values := make(map[string]string)
	for i, seg := range rt.segments {
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			values[seg[1:len(seg)-1]] = got[i]
			continue
		}
		if got[i] != seg {
			return nil, false
		}
	}
	return values, true
}

func (m *testMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pathMatched := false
	for _, rt := range m.routes {
		values, ok := rt.match(r.URL.Path)
		if !ok {
			continue
		}
		pathMatched = true
		if rt.method != "" && r.Method != rt.method &&
			!(r.Method == http.MethodHead && rt.method == http.MethodGet) {
			continue
		}
		if len(values) > 0 {
			r = r.WithContext(context.WithValue(r.Context(), pathValuesKey{}, values))
		}
		rt.handler(w, r)
		return
	}
	if pathMatched {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	http.NotFound(w, r)
}

type pathValuesKey struct{}

// pathValue stands in for (*http.Request).PathValue, which Go 1.21 does
// not have yet.
func pathValue(r *http.Request, name string) string {
	values, _ := r.Context().Value(pathValuesKey{}).(map[string]string)
	return values[name]
}
