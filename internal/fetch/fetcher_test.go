package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		} else {
			// suppress content sniffing so the header stays empty
			w.Header()["Content-Type"] = nil
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchJSON_Success(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
	}{
		{name: "plain", contentType: "application/json"},
		{name: "with charset", contentType: "application/json; charset=utf-8"},
		{name: "vendor suffix", contentType: "application/problem+json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, http.StatusOK, tt.contentType, `{"emTela": 3, "pacientes": []}`)

			payload, err := NewFetcher(5*time.Second).FetchJSON(context.Background(), srv.URL)
			require.NoError(t, err)
			assert.JSONEq(t, `{"emTela": 3, "pacientes": []}`, string(payload))
		})
	}
}

func TestFetchJSON_BadStatus(t *testing.T) {
	longBody := strings.Repeat("x", 500)
	srv := newServer(t, http.StatusInternalServerError, "text/plain", longBody)

	_, err := NewFetcher(0).FetchJSON(context.Background(), srv.URL)
	require.Error(t, err)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Equal(t, http.StatusInternalServerError, netErr.StatusCode)
	assert.Len(t, netErr.Body, 200, "body is truncated to 200 characters")
	assert.Contains(t, err.Error(), "500")
}

func TestFetchJSON_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewFetcher(time.Second).FetchJSON(context.Background(), url)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.Zero(t, netErr.StatusCode)
	assert.NotNil(t, netErr.Unwrap())
}

func TestFetchJSON_UnexpectedContentType(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
	}{
		{name: "plain text", contentType: "text/plain", body: `{"emTela": 1}`},
		{name: "missing", contentType: "", body: `{"emTela": 1}`},
		{name: "html without doctype", contentType: "text/html", body: `<html><body>login</body></html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, http.StatusOK, tt.contentType, tt.body)

			_, err := NewFetcher(0).FetchJSON(context.Background(), srv.URL)

			var ctErr *UnexpectedContentTypeError
			require.True(t, errors.As(err, &ctErr))
			assert.Equal(t, tt.contentType, ctErr.ContentType)

			var htmlErr *HTMLInsteadOfJSONError
			assert.False(t, errors.As(err, &htmlErr))
		})
	}
}

func TestFetchJSON_HTMLInsteadOfJSON(t *testing.T) {
	srv := newServer(t, http.StatusOK, "text/html; charset=utf-8", "\n  <!DOCTYPE html><html><body>VPN login</body></html>")

	_, err := NewFetcher(0).FetchJSON(context.Background(), srv.URL)

	var htmlErr *HTMLInsteadOfJSONError
	require.True(t, errors.As(err, &htmlErr))
	assert.Contains(t, err.Error(), "HTML page instead of JSON")

	var ctErr *UnexpectedContentTypeError
	assert.True(t, errors.As(err, &ctErr), "HTML errors are a kind of content type error")
}

func TestFetchJSON_ParseError(t *testing.T) {
	srv := newServer(t, http.StatusOK, "application/json", `{"emTela": `)

	_, err := NewFetcher(0).FetchJSON(context.Background(), srv.URL)

	var parseErr *JSONParseError
	require.True(t, errors.As(err, &parseErr))
	assert.NotNil(t, parseErr.Unwrap())
}

func TestFetchJSON_ContextCancelled(t *testing.T) {
	srv := newServer(t, http.StatusOK, "application/json", `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFetcher(0).FetchJSON(ctx, srv.URL)

	var netErr *NetworkError
	require.True(t, errors.As(err, &netErr))
	assert.True(t, errors.Is(err, context.Canceled))
}
