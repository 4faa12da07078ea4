package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPRenewer_Renew(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-7", body["userId"])
		_, _ = w.Write([]byte(`{"token":"fresh.token.sig"}`))
	}))
	defer srv.Close()

	token, err := NewHTTPRenewer(srv.Client(), srv.URL).Renew(context.Background(), "user-7")
	require.NoError(t, err)
	assert.Equal(t, "fresh.token.sig", token)
}

func TestHTTPRenewer_Failures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"denied": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"no token": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"token":""}`))
		},
		"garbage": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(handler)
			defer srv.Close()

			_, err := NewHTTPRenewer(srv.Client(), srv.URL).Renew(context.Background(), "user-7")
			assert.ErrorIs(t, err, ErrRenewalDenied)
		})
	}
}

func TestHTTPRenewer_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPRenewer(nil, url).Renew(context.Background(), "user-7")
	assert.ErrorIs(t, err, ErrNetwork)
}
