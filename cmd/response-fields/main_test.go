package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testConfig = `
listen: ":9090"
settings:
  scope: site:3
  ttl: 1m
publicTypes: [product]
adminTokens: [s3cret]
conditionalRequests: true
posts:
  - id: 1
    type: post
    title: Hello world
    body: First post.
    created: 2023-08-01T08:30:00Z
    modified: 2023-08-15T10:00:00Z
    comments:
      - author: ann
        date: 2023-08-16T09:00:00Z
        approved: true
      - author: spam
        date: 2023-08-19T09:00:00Z
        approved: false
  - id: 2
    type: post
    title: Secret plans
    body: Hidden.
    password: letmein
    created: 2023-08-02T08:30:00Z
  - id: 3
    type: page
    title: About
    body: About us.
    created: 2023-07-01T08:30:00Z
  - id: 4
    type: product
    title: Widget
    body: A fine widget.
    created: 2023-08-03T08:30:00Z
  - id: 5
    type: internal
    title: Draft notes
    created: 2023-08-04T08:30:00Z
`

func writeTestConfig(t *testing.T) string {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(testConfig), 0644))
	return filename
}

func newTestServer(t *testing.T, mutate func(*Config)) http.Handler {
	config, err := getConfig(writeTestConfig(t))
	require.NoError(t, err)
	config.Settings.DB = filepath.Join(t.TempDir(), "settings.db")
	if mutate != nil {
		mutate(&config)
	}
	srv, closeStore, err := buildServer(context.Background(), config, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { closeStore() })
	return srv.routes()
}

func get(h http.Handler, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func admin() http.Header {
	return http.Header{"Authorization": {"Bearer s3cret"}}
}

func TestGetConfig(t *testing.T) {
	config, err := getConfig(writeTestConfig(t))

	require.NoError(t, err)
	require.Equal(t, ":9090", config.Listen)
	require.Equal(t, "site:3", config.Settings.Scope)
	require.Equal(t, time.Minute, config.Settings.TTL)
	require.Equal(t, "settings.db", config.Settings.DB)
	require.Equal(t, []string{"product"}, config.PublicTypes)
	require.Len(t, config.Posts, 5)
	require.Equal(t, time.Date(2023, 8, 15, 10, 0, 0, 0, time.UTC), config.Posts[0].Modified)
	require.True(t, config.Posts[0].Comments[0].Approved)
}

func TestGetConfigRejectsDuplicateIDs(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filename, []byte("posts:\n  - {id: 1, type: post}\n  - {id: 1, type: page}\n"), 0644))

	_, err := getConfig(filename)

	require.ErrorContains(t, err, "duplicate id")
}

func TestBuildServerRejectsBadScope(t *testing.T) {
	config := defaultConfig()
	config.Settings.Scope = "galaxy"

	_, _, err := buildServer(context.Background(), config, zerolog.Nop())

	require.Error(t, err)
}

func TestSinglePostUsesCommentTime(t *testing.T) {
	h := newTestServer(t, nil)

	rr := get(h, "/posts/1", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	// the unapproved comment is ignored
	require.Equal(t, "Wed, 16 Aug 2023 09:00:00 GMT", rr.Header().Get("Last-Modified"))
	require.True(t, strings.HasPrefix(rr.Header().Get("ETag"), `W/"`))
	require.Equal(t, "public, max-age=86400", rr.Header().Get("Cache-Control"))
	require.Equal(t, "cache", rr.Header().Get("Pragma"))
}

func TestPasswordProtectedPost(t *testing.T) {
	h := newTestServer(t, nil)

	locked := get(h, "/posts/2", nil)
	require.Equal(t, http.StatusOK, locked.Code)
	require.Contains(t, locked.Body.String(), "password protected")
	require.Empty(t, locked.Header().Get("ETag"))
	require.Empty(t, locked.Header().Get("Cache-Control"))

	unlocked := get(h, "/posts/2?password=letmein", nil)
	require.Contains(t, unlocked.Body.String(), "Hidden.")
	require.NotEmpty(t, unlocked.Header().Get("ETag"))
}

func TestTypesOutsideAllowList(t *testing.T) {
	h := newTestServer(t, nil)

	require.Empty(t, get(h, "/posts/5", nil).Header().Get("ETag"))
	require.Empty(t, get(h, "/type/page", nil).Header().Get("ETag"))
	require.NotEmpty(t, get(h, "/posts/3", nil).Header().Get("ETag"))
	require.NotEmpty(t, get(h, "/posts/4", nil).Header().Get("ETag"))
	require.NotEmpty(t, get(h, "/type/product", nil).Header().Get("ETag"))
}

func TestMissingPost(t *testing.T) {
	h := newTestServer(t, nil)

	rr := get(h, "/posts/99", nil)

	require.Equal(t, http.StatusNotFound, rr.Code)
	require.Empty(t, rr.Header().Get("ETag"))
}

func TestArchivePagesHaveDistinctTags(t *testing.T) {
	h := newTestServer(t, nil)

	home := get(h, "/", nil).Header().Get("ETag")
	archive := get(h, "/type/post", nil).Header().Get("ETag")

	require.NotEmpty(t, home)
	require.NotEmpty(t, archive)
	require.NotEqual(t, home, archive)
	// past the last page there is no first entry
	require.Empty(t, get(h, "/type/post?page=2", nil).Header().Get("ETag"))
}

func TestSearchAndAuthenticatedMaxAge(t *testing.T) {
	h := newTestServer(t, nil)

	rr := get(h, "/search?s=hello", nil)
	require.NotEmpty(t, rr.Header().Get("ETag"))
	require.Equal(t, "no-cache, must-revalidate, max-age=0", rr.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", rr.Header().Get("Pragma"))

	rr = get(h, "/posts/1", http.Header{"Cookie": {"logged_in=1"}})
	require.Equal(t, "no-cache, must-revalidate, max-age=0", rr.Header().Get("Cache-Control"))

	require.Empty(t, get(h, "/search?s=nothing-matches", nil).Header().Get("ETag"))
}

func TestFeed(t *testing.T) {
	h := newTestServer(t, nil)

	rr := get(h, "/feed", nil)

	require.Empty(t, rr.Header().Get("ETag"))
	require.Empty(t, rr.Header().Get("Last-Modified"))
	require.NotEmpty(t, rr.Header().Get("Expires"))
	require.Equal(t, "public, max-age=86400", rr.Header().Get("Cache-Control"))
	require.Contains(t, rr.Body.String(), "<title>Hello world</title>")
}

func TestSettingsRequireAdmin(t *testing.T) {
	h := newTestServer(t, nil)

	require.Equal(t, http.StatusUnauthorized, get(h, "/settings", nil).Code)
	require.Equal(t, http.StatusUnauthorized, get(h, "/settings", http.Header{"Authorization": {"Bearer nope"}}).Code)
	require.Equal(t, http.StatusOK, get(h, "/settings", admin()).Code)
}

func TestUpdateSettingsWithJSON(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(
		`{"emit_cache_control": 1, "emit_expires": 1, "max_age_default": 600, "max_age_search": -5}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var record map[string]int
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &record))
	require.Equal(t, 600, record["max_age_default"])
	require.Equal(t, 0, record["max_age_search"])
	require.Equal(t, 0, record["emit_etag"])

	post := get(h, "/posts/1", nil)
	require.Empty(t, post.Header().Get("ETag"))
	require.Equal(t, "public, max-age=600", post.Header().Get("Cache-Control"))
}

func TestUpdateSettingsWithForm(t *testing.T) {
	h := newTestServer(t, nil)
	form := url.Values{
		"emit_etag":          {"1"},
		"weak_etag":          {"0"},
		"emit_cache_control": {"on"},
		"max_age_default":    {"-5"},
	}

	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(form.Encode()))
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	post := get(h, "/posts/1", nil)
	require.True(t, strings.HasPrefix(post.Header().Get("ETag"), `"`))
	// the bad max-age kept the previous value
	require.Equal(t, "public, max-age=86400", post.Header().Get("Cache-Control"))
	require.Empty(t, post.Header().Get("Last-Modified"))
}

func TestUpdateSettingsRejectsGarbage(t *testing.T) {
	h := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer s3cret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSettingsSharedThroughRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	useRedis := func(c *Config) {
		c.Settings.Redis = mr.Addr()
		c.Settings.TTL = 0
	}
	first := newTestServer(t, useRedis)
	second := newTestServer(t, useRedis)
	require.True(t, mr.Exists("site:3:http_response_fields_version"))

	req := httptest.NewRequest(http.MethodPut, "/settings", strings.NewReader(`{"emit_expires": 1, "max_age_default": 60}`))
	req.Header.Set("Authorization", "Bearer s3cret")
	first.ServeHTTP(httptest.NewRecorder(), req)

	rr := get(second, "/posts/1", nil)
	require.Empty(t, rr.Header().Get("Cache-Control"))
	require.NotEmpty(t, rr.Header().Get("Expires"))
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestServer(t, nil)
	get(h, "/posts/1", nil)
	get(h, "/posts/2", nil)

	rr := get(h, "/metrics", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `response_fields_responses_total{kind="singular",outcome="emitted"} 1`)
	require.Contains(t, rr.Body.String(), `response_fields_responses_total{kind="singular",outcome="password-required"} 1`)
	require.Contains(t, rr.Body.String(), `response_fields_settings_loads_total{result="store"}`)
}

func TestConditionalGet(t *testing.T) {
	h := newTestServer(t, nil)
	etag := get(h, "/posts/1", nil).Header().Get("ETag")
	require.NotEmpty(t, etag)

	rr := get(h, "/posts/1", http.Header{"If-None-Match": {etag}})
	require.Equal(t, http.StatusNotModified, rr.Code)
	require.Empty(t, rr.Body.String())

	rr = get(h, "/posts/1", http.Header{"If-Modified-Since": {"Wed, 16 Aug 2023 09:00:00 GMT"}})
	require.Equal(t, http.StatusNotModified, rr.Code)

	// no validators on protected content
	rr = get(h, "/posts/2", http.Header{"If-None-Match": {"*"}})
	require.Equal(t, http.StatusOK, rr.Code)
}
