package importer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClient_FetchTemplate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/templates/tpl-1", r.URL.Path)
		require.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]any{
			"id":   "tpl-1",
			"name": "Sales proposal",
			"content": []map[string]any{
				{"type": "text", "text": "hello"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "good-token", "refresh-1")
	env, raw, err := c.FetchTemplate(context.Background(), "tpl-1")
	require.NoError(t, err)
	require.Equal(t, "Sales proposal", env.Name)
	require.Len(t, env.Content, 1)
	require.NotEmpty(t, raw)
}

func TestClient_SilentRefreshOn401(t *testing.T) {
	var refreshed atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/token":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "refresh_token", body["grant_type"])
			require.Equal(t, "refresh-1", body["refresh_token"])
			refreshed.Store(true)
			json.NewEncoder(w).Encode(map[string]string{
				"access_token":  "fresh-token",
				"refresh_token": "refresh-2",
			})
		case "/v1/envelopes/env-1":
			if r.Header.Get("Authorization") != "Bearer fresh-token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"id": "env-1", "name": "Renewal"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "stale-token", "refresh-1")
	var gotAccess, gotRefresh string
	c.OnTokenRefresh(func(access, refresh string) {
		gotAccess, gotRefresh = access, refresh
	})

	env, _, err := c.FetchEnvelope(context.Background(), "env-1")
	require.NoError(t, err)
	require.Equal(t, "Renewal", env.Name)
	require.True(t, refreshed.Load())
	require.Equal(t, "fresh-token", gotAccess)
	require.Equal(t, "refresh-2", gotRefresh)
}

func TestClient_RefreshFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/token" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "stale", "dead-refresh")
	_, _, err := c.FetchEnvelope(context.Background(), "env-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "token refresh")
}

func TestClient_Non200IsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", "r")
	_, _, err := c.FetchTemplate(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}
