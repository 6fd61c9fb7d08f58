package apptrust

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bookverse/platform/internal/registry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := New(Config{BaseURL: srv.URL, Token: "test-token"})
	require.NoError(t, err)
	return client
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Token: "t"})
	require.Error(t, err)

	_, err = New(Config{BaseURL: "http://registry"})
	require.Error(t, err)

	c, err := New(Config{BaseURL: "http://registry/", Token: "t"})
	require.NoError(t, err)
	require.Equal(t, "http://registry", c.baseURL)
}

func TestListVersions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/applications/bookverse-inventory/versions", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.Equal(t, "created", r.URL.Query().Get("order_by"))
		require.Equal(t, "false", r.URL.Query().Get("order_asc"))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"versions": []map[string]any{
				{"version": "2.0.0", "tag": "latest", "release_status": "RELEASED"},
				{"version": "1.9.0", "tag": "stable", "release_status": "TRUSTED_RELEASE",
					"properties": map[string][]string{"original_tag_before_latest": {"version"}}},
			},
		})
	})

	versions, err := client.ListVersions(context.Background(), "bookverse-inventory")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, "2.0.0", versions[0].Version)
	require.Equal(t, "latest", versions[0].Tag)
	tag, ok := versions[1].BackupTag(registry.PropBackupBeforeLatest)
	require.True(t, ok)
	require.Equal(t, "version", tag)
}

func TestPatchVersion_Body(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/applications/app/versions/2.1.0", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	tag := "latest"
	err := client.PatchVersion(context.Background(), "app", "2.1.0", registry.Patch{
		Tag:           &tag,
		SetProperties: map[string][]string{registry.PropBackupBeforeLatest: {"version"}},
	})
	require.NoError(t, err)

	require.Equal(t, "latest", got["tag"])
	require.Equal(t, map[string]any{"original_tag_before_latest": []any{"version"}}, got["properties"])
	_, hasDelete := got["delete_properties"]
	require.False(t, hasDelete)
}

func TestPatchVersion_DeleteProperties(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	tag := "version"
	err := client.PatchVersion(context.Background(), "app", "2.0.0", registry.Patch{
		Tag:              &tag,
		DeleteProperties: []string{registry.PropBackupBeforeLatest},
	})
	require.NoError(t, err)
	require.Equal(t, []any{"original_tag_before_latest"}, got["delete_properties"])
}

func TestGetVersionContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/applications/app/versions/1.2.3/content", r.URL.Path)
		require.Equal(t, "releasables", r.URL.Query().Get("include"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sources":     map[string]any{"builds": []any{}},
			"releasables": []map[string]any{{"name": "image"}},
		})
	})

	content, err := client.GetVersionContent(context.Background(), "app", "1.2.3")
	require.NoError(t, err)
	require.Len(t, content.Releasables, 1)
}

func TestCreateVersion_Body(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/applications/bookverse-platform/versions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	})

	err := client.CreateVersion(context.Background(), "bookverse-platform", registry.CreateVersionRequest{
		Version: "1.0.1",
		Tag:     "release",
		Sources: []registry.SourceVersion{
			{ApplicationKey: "bookverse-inventory", Version: "1.2.3"},
		},
	})
	require.NoError(t, err)

	require.Equal(t, "1.0.1", got["version"])
	require.Equal(t, "release", got["tag"])
	sources := got["sources"].(map[string]any)["versions"].([]any)
	require.Len(t, sources, 1)
}

func TestErrorMapping(t *testing.T) {
	t.Run("404 maps to ErrNotFound", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "no such application", http.StatusNotFound)
		})
		_, err := client.ListVersions(context.Background(), "missing")
		require.ErrorIs(t, err, registry.ErrNotFound)
	})

	t.Run("5xx maps to ErrUnavailable", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})
		_, err := client.ListVersions(context.Background(), "app")
		require.ErrorIs(t, err, registry.ErrUnavailable)
		require.Contains(t, err.Error(), "boom")
	})

	t.Run("connection refused maps to ErrUnavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close() // nothing listening anymore

		client, err := New(Config{BaseURL: srv.URL, Token: "t"})
		require.NoError(t, err)
		_, err = client.ListVersions(context.Background(), "app")
		require.ErrorIs(t, err, registry.ErrUnavailable)
	})

	t.Run("other 4xx is a plain error", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "bad tag", http.StatusBadRequest)
		})
		err := client.PatchVersion(context.Background(), "app", "1.0.0", registry.Patch{})
		require.Error(t, err)
		require.NotErrorIs(t, err, registry.ErrNotFound)
		require.NotErrorIs(t, err, registry.ErrUnavailable)
	})
}
