package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/core"
)

const (
	firstCSV  = "id,name,score\n1,Alice,95\n2,Bob,87\n3,Cy,70\n"
	secondCSV = "id,name,score\n1,Alice,95\n2,Bob,90\n4,Dee,60\n"
)

func testConfig() *config.Config {
	return &config.Config{
		Security: config.SecurityConfig{EnableCSP: true},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, opts core.Options) *Server {
	t.Helper()
	return NewServer(core.NewService(nil, opts), cfg)
}

// form builds a multipart body. Files are given as field -> content and
// named <field>.csv.
func form(t *testing.T, files map[string]string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func postCompare(t *testing.T, s *Server, files, fields map[string]string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := form(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/compare", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "web-test")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, s *Server, path string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})
	rec := get(t, s, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "default-src 'self'")
}

func TestSecurityHeaders_NoCSP(t *testing.T) {
	cfg := testConfig()
	cfg.Security.EnableCSP = false
	rec := get(t, newTestServer(t, cfg, core.Options{}), "/healthz")
	assert.Empty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestCompare(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})

	rec := postCompare(t, s,
		map[string]string{"first": firstCSV, "second": secondCSV},
		map[string]string{"index": "id"},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		RunID       uuid.UUID      `json:"run_id"`
		MatchResult bool           `json:"match_result"`
		Stats       map[string]int `json:"stats"`
		Output      map[string]any `json:"output"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.MatchResult)
	assert.Equal(t, 1, resp.Stats["mismatches"])
	assert.Equal(t, 2, resp.Stats["extra_rows"])
	assert.Equal(t, "first.csv", resp.Output["first_file"])
	assert.Equal(t, []any{"3"}, resp.Output["extra_rows_in_first_file"])

	run, err := s.service.GetRun(t.Context(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.1", run.IPAddress)
	assert.Equal(t, "web-test", run.UserAgent)
}

func TestCompare_PlanAndFlags(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})

	rec := postCompare(t, s,
		map[string]string{
			"first":  "id, name ,score\n1, Alice ,95\n",
			"second": "id,name,score\n1,Alice,10\n",
		},
		map[string]string{
			"plan":          "index: id\n",
			"strip":         "true",
			"strip_headers": "true",
			"drop_columns":  "score",
		},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.MatchResult)
	assert.Equal(t, []string{"strip_column_names", "strip_whitespace", "drop_columns(score)"}, resp.Output.Transforms)
}

func TestCompare_RaggedLines(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})
	rec := postCompare(t, s,
		map[string]string{"first": "id,v\n1,a,extra\n", "second": "id,v\n1,a\n"},
		map[string]string{"index": "id"},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Contains(t, resp.RaggedLines, "first.csv")
	assert.Equal(t, 3, resp.RaggedLines["first.csv"][0].Fields)
}

func TestCompare_Errors(t *testing.T) {
	both := map[string]string{"first": firstCSV, "second": secondCSV}

	tests := []struct {
		name   string
		opts   core.Options
		files  map[string]string
		fields map[string]string
		status int
		code   string
	}{
		{"missing second file", core.Options{}, map[string]string{"first": firstCSV}, map[string]string{"index": "id"}, http.StatusBadRequest, "FILE004"},
		{"no index", core.Options{}, both, nil, http.StatusBadRequest, "PLAN003"},
		{"index not in file", core.Options{}, both, map[string]string{"index": "nope"}, http.StatusUnprocessableEntity, "COL003"},
		{"unknown plan op", core.Options{}, both, map[string]string{"plan": "index: id\ntransforms:\n  - {column: name, op: shout}\n"}, http.StatusBadRequest, "PLAN002"},
		{"unknown plan field", core.Options{}, both, map[string]string{"plan": "index: id\nfrobnicate: true\n"}, http.StatusBadRequest, "PLAN001"},
		{"bad flag", core.Options{}, both, map[string]string{"index": "id", "strip": "sometimes"}, http.StatusBadRequest, "PLAN001"},
		{"drop unknown column", core.Options{}, both, map[string]string{"index": "id", "drop_columns": "ghost"}, http.StatusUnprocessableEntity, "COL001"},
		{"file too large", core.Options{MaxFileSize: 16}, both, map[string]string{"index": "id"}, http.StatusRequestEntityTooLarge, "FILE001"},
		{"bad encoding", core.Options{}, both, map[string]string{"index": "id", "encoding": "ebcdic"}, http.StatusBadRequest, "FILE003"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, testConfig(), tt.opts)
			rec := postCompare(t, s, tt.files, tt.fields)

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			resp := decodeError(t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestCompare_NotMultipart(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/compare", strings.NewReader("id\n1\n"))
	req.Header.Set("Content-Type", "text/csv")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE002", decodeError(t, rec).Code)
}

func TestListAndGetRuns(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})
	for range 3 {
		rec := postCompare(t, s,
			map[string]string{"first": firstCSV, "second": firstCSV},
			map[string]string{"index": "id"},
		)
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := get(t, s, "/api/runs?limit=2&offset=1")
	require.Equal(t, http.StatusOK, rec.Code)
	var list RunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Limit)
	assert.Equal(t, 1, list.Offset)
	require.Len(t, list.Runs, 2)
	assert.Nil(t, list.Runs[0].Output)

	rec = get(t, s, "/api/runs/"+list.Runs[0].ID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	var run core.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, list.Runs[0].ID, run.ID)
	require.NotNil(t, run.Output)
	assert.True(t, run.Output.MatchResult)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})

	for _, path := range []string{"/api/runs/not-a-uuid", "/api/runs/" + uuid.NewString()} {
		rec := get(t, s, path)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.Equal(t, "RUN001", decodeError(t, rec).Code, path)
	}
}

func TestPages(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})

	rec := get(t, s, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "No comparisons yet.")

	rec = postCompare(t, s,
		map[string]string{"first": firstCSV, "second": secondCSV},
		map[string]string{"index": "id"},
	)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	rec = get(t, s, "/")
	assert.Contains(t, rec.Body.String(), "/runs/"+resp.RunID.String())

	rec = get(t, s, "/runs/"+resp.RunID.String())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Mismatched rows (1)")
	assert.Contains(t, rec.Body.String(), "<title>first.csv vs second.csv")
}

func TestPages_NotFound(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{})
	rec := get(t, s, "/runs/"+uuid.NewString())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "Code: RUN001")

	rec = get(t, s, "/runs/"+uuid.NewString(), "Accept", "application/json")
	assert.Equal(t, "RUN001", decodeError(t, rec).Code)
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RequireAPIKey = true
	cfg.Security.APIKeys = []string{"secret-key"}
	s := newTestServer(t, cfg, core.Options{})

	assert.Equal(t, http.StatusUnauthorized, get(t, s, "/api/runs").Code)
	assert.Equal(t, http.StatusForbidden, get(t, s, "/api/runs", "X-API-Key", "wrong").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/api/runs", "X-API-Key", "secret-key").Code)
	assert.Equal(t, http.StatusOK, get(t, s, "/healthz").Code, "health is public")
}

func TestCompareRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 100, Burst: 100, CompareRequestsPerMinute: 1}
	s := newTestServer(t, cfg, core.Options{})

	files := map[string]string{"first": firstCSV, "second": firstCSV}
	fields := map[string]string{"index": "id"}
	require.Equal(t, http.StatusOK, postCompare(t, s, files, fields).Code)

	rec := postCompare(t, s, files, fields)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, get(t, s, "/api/runs").Code, "listing is not compare-limited")
}

func TestCORS(t *testing.T) {
	cfg := testConfig()
	cfg.Security.AllowedOrigins = []string{"https://app.example"}
	s := newTestServer(t, cfg, core.Options{})

	req := httptest.NewRequest(http.MethodOptions, "/api/compare", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatus(t *testing.T) {
	s := newTestServer(t, testConfig(), core.Options{MaxConcurrent: 3})
	rec := get(t, s, "/api/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var status core.LimiterStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 3, status.MaxConcurrent)
	assert.Equal(t, 3, status.Available)
}

func TestHTTPStatus(t *testing.T) {
	tests := map[string]int{
		"FILE001": http.StatusRequestEntityTooLarge,
		"FILE004": http.StatusBadRequest,
		"COL003":  http.StatusUnprocessableEntity,
		"PLAN002": http.StatusBadRequest,
		"RUN002":  http.StatusServiceUnavailable,
		"DB004":   http.StatusServiceUnavailable,
		"ERR000":  http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, httpStatus(code), code)
	}
}

func TestDropColumns(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, dropColumns([]string{"a, b", " ", "c,"}))
	assert.Nil(t, dropColumns(nil))
}
