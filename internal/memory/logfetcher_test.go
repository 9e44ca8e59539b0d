package memory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPLogFetcherJoinsLogLines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/instance/logs", r.URL.Path)
		require.Equal(t, "inst-1", r.URL.Query().Get("instanceId"))
		require.Equal(t, "s3cret", r.Header.Get("x-internal-secret"))
		_, _ = w.Write([]byte(`{"logs":["line one","line two"]}`))
	}))
	defer srv.Close()

	f := NewHTTPLogFetcher(srv.URL, "s3cret")
	logs, err := f.FetchLogs(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Equal(t, "line one\nline two", logs)
}

func TestHTTPLogFetcherAcceptsStringBlob(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"logs":"one big blob"}`))
	}))
	defer srv.Close()

	f := NewHTTPLogFetcher(srv.URL, "")
	logs, err := f.FetchLogs(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Equal(t, "one big blob", logs)
}

func TestHTTPLogFetcherSurfacesHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewHTTPLogFetcher(srv.URL, "wrong")
	_, err := f.FetchLogs(context.Background(), "inst-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}
