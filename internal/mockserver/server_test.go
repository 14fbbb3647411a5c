package mockserver

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/launchdarkly/go-test-helpers/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testFixtures = Fixtures{
	Responses: []Response{
		{
			Match:     "hero",
			Variables: map[string]any{"episode": "JEDI"},
			Body:      map[string]any{"data": map[string]any{"hero": map[string]any{"name": "Luke"}}},
		},
		{
			Match: "hero",
			Body:  map[string]any{"data": map[string]any{"hero": map[string]any{"name": "R2-D2"}}},
		},
		{
			Match:  "broken",
			Status: http.StatusInternalServerError,
			Body:   map[string]any{"errors": []any{map[string]any{"message": "internal"}}},
		},
	},
}

func newTestServer() *Server {
	return New(testFixtures, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func post(t *testing.T, s *Server, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return rec, decoded
}

func TestServerMatchesVariables(t *testing.T) {
	s := newTestServer()

	rec, body := post(t, s, `{"query":"query { hero { name } }","variables":{"episode":"JEDI"}}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, map[string]any{"hero": map[string]any{"name": "Luke"}}, body["data"])

	_, body = post(t, s, `{"query":"query { hero { name } }","variables":{"episode":"EMPIRE"}}`)
	assert.Equal(t, map[string]any{"hero": map[string]any{"name": "R2-D2"}}, body["data"])

	assert.Equal(t, int64(2), s.Requests())
}

func TestServerMatchIgnoresFormatting(t *testing.T) {
	s := newTestServer()

	_, body := post(t, s, `{"query":"query {\n  hero   {\n    name\n  }\n}"}`)
	assert.Equal(t, map[string]any{"hero": map[string]any{"name": "R2-D2"}}, body["data"])
}

func TestServerFixtureStatus(t *testing.T) {
	s := newTestServer()

	rec, body := post(t, s, `{"query":"{ broken }"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Len(t, body["errors"], 1)
}

func TestServerNoMatch(t *testing.T) {
	s := newTestServer()

	rec, body := post(t, s, `{"query":"{ villain { name } }"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{map[string]any{"message": "no fixture matches query"}}, body["errors"])
}

func TestServerBadRequests(t *testing.T) {
	s := newTestServer()

	rec, _ := post(t, s, `{"variables":{}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = post(t, s, `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int64(1), s.Requests())
}

func TestServerGet(t *testing.T) {
	s := newTestServer()

	q := url.Values{}
	q.Set("query", "{ hero { name } }")
	q.Set("variables", `{"episode":"JEDI"}`)
	req := httptest.NewRequest(http.MethodGet, Path+"?"+q.Encode(), nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"hero":{"name":"Luke"}}}`, rec.Body.String())
}

func TestServerStatus(t *testing.T) {
	s := newTestServer()
	post(t, s, `{"query":"{ hero { name } }"}`)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","requests":1}`, rec.Body.String())
}

func TestServerRejectsOtherMethods(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, Path, nil)
	rec := httptest.NewRecorder()
	newTestServer().Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestLoadFixtures(t *testing.T) {
	helpers.WithTempFile(func(path string) {
		require.NoError(t, os.WriteFile(path, []byte(`
responses:
  - match: "hero"
    variables: {episode: JEDI}
    status: 201
    delay: 50ms
    body:
      data: {hero: {name: Luke}}
`), 0o600))

		f, err := LoadFixtures(path)
		require.NoError(t, err)
		require.Len(t, f.Responses, 1)

		r := f.Responses[0]
		assert.Equal(t, "hero", r.Match)
		assert.Equal(t, map[string]any{"episode": "JEDI"}, r.Variables)
		assert.Equal(t, 201, r.Status)
		assert.Equal(t, 50*time.Millisecond, r.Delay)
		assert.Equal(t, map[string]any{"hero": map[string]any{"name": "Luke"}}, r.Body["data"])
	})
}

func TestLoadFixturesErrors(t *testing.T) {
	_, err := LoadFixtures("/nonexistent/fixtures.yaml")
	assert.ErrorContains(t, err, "failed to read fixtures")

	helpers.WithTempFile(func(path string) {
		require.NoError(t, os.WriteFile(path, []byte("responses:\n  - matches: hero\n"), 0o600))
		_, err := LoadFixtures(path)
		assert.ErrorContains(t, err, "failed to parse fixtures")
	})
}
