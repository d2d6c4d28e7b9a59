package repository_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   []byte
}

// fakeService records every request and answers from a route table keyed by "METHOD path".
type fakeService struct {
	mu       sync.Mutex
	requests []recordedRequest
	routes   map[string]func(body []byte) (int, any)
}

func startService() (*httptest.Server, *fakeService) {
	fake := &fakeService{routes: map[string]func([]byte) (int, any){}}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		fake.mu.Lock()
		fake.requests = append(fake.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Body: body})
		route, ok := fake.routes[r.Method+" "+r.URL.Path]
		fake.mu.Unlock()

		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		status, data := route(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if data != nil {
			_ = json.NewEncoder(w).Encode(map[string]any{"data": data, "statusCode": status})
		}
	}))

	return srv, fake
}

func (f *fakeService) handle(method, path string, fn func(body []byte) (int, any)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes[method+" "+path] = fn
}

func (f *fakeService) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
	f.routes = map[string]func([]byte) (int, any){}
}

func (f *fakeService) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}
