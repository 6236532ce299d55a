// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func serve(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestNew(t *testing.T) {
	s := New(
		WithName("crashcored"),
		WithVersion("1.2.3"),
		WithPort(9999),
		WithHandler(map[string]http.HandlerFunc{"/a": okHandler}),
		WithHandler(map[string]http.HandlerFunc{"/b": okHandler}),
	)
	require.NotNil(t, s)
	assert.Equal(t, ":9999", s.Addr())
	assert.Len(t, s.config.Handlers, 2)
	assert.NotNil(t, s.rateLimiter)

	assert.NotNil(t, NewWithConfig(nil))
}

func TestHealthEndpoint(t *testing.T) {
	s := New()

	rec := serve(t, s, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec = serve(t, s, http.MethodPost, "/health")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestReadyEndpoint(t *testing.T) {
	var checkErr error
	s := New(WithReadinessCheck(func() error { return checkErr }))

	tests := []struct {
		name       string
		ready      bool
		check      error
		wantStatus int
		wantReason string
	}{
		{"initializing", false, nil, http.StatusServiceUnavailable, "initializing"},
		{"ready", true, nil, http.StatusOK, ""},
		{"check failing", true, errors.New("event loop is blocked"), http.StatusServiceUnavailable, "blocked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.SetReady(tt.ready)
			checkErr = tt.check

			rec := serve(t, s, http.MethodGet, "/ready")
			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Contains(t, resp.Reason, tt.wantReason)
		})
	}
}

func TestRootEndpoint(t *testing.T) {
	s := New(WithName("crashcored"), WithVersion("v9"),
		WithHandler(map[string]http.HandlerFunc{"/v1/threads": okHandler}))
	s.SetReady(true)

	rec := serve(t, s, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RootResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "crashcored", resp.Name)
	assert.Equal(t, "v9", resp.Version)
	assert.True(t, resp.Ready)
	assert.Equal(t, []string{"/health", "/metrics", "/ready", "/v1/threads"}, resp.Routes)

	assert.Equal(t, http.StatusNotFound, serve(t, s, http.MethodGet, "/nope").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := New(WithHandler(map[string]http.HandlerFunc{"/v1/x": okHandler}))
	serve(t, s, http.MethodGet, "/v1/x")

	rec := serve(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "crashcore_http_requests_total"))
}

func TestHandlersRunBehindMiddleware(t *testing.T) {
	s := New(WithHandler(map[string]http.HandlerFunc{
		"/v1/ok": okHandler,
		"/v1/panic": func(http.ResponseWriter, *http.Request) {
			panic("handler bug")
		},
	}))

	rec := serve(t, s, http.MethodGet, "/v1/ok")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	assert.Equal(t, DefaultAPIVersion, rec.Header().Get("X-API-Version"))

	rec = serve(t, s, http.MethodGet, "/v1/panic")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL", resp.Code)
	assert.Equal(t, rec.Header().Get("X-Request-Id"), resp.RequestID)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	s := New(WithShutdownTimeout(time.Second))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/ready"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.NotEmpty(t, s.notReadyReason())
}

func TestServer_RunStopsOnTaskError(t *testing.T) {
	s := New(WithAddress("127.0.0.1"), WithPort(0))
	err := s.Run(context.Background(), func(context.Context) error {
		return errors.New("detector failed")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detector failed")
}
