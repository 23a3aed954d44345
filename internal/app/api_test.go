package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAPIHandler(t *testing.T) {
	t.Parallel()

	runtime, _ := newTestRuntime(t, &fakeSource{})
	handler := NewAPIHandler(runtime.Service(), nil)

	testCases := []struct {
		name        string
		method      string
		path        string
		wantCode    int
		wantType    string
		wantSubstr  string
		wantErrBody bool
	}{
		{name: "aggregate", method: http.MethodGet, path: "/aggregate", wantCode: http.StatusOK, wantType: "application/json", wantSubstr: `"total_commits":3`},
		{name: "summary_window", method: http.MethodGet, path: "/summary?start=2024-01-01&end=2024-01-31", wantCode: http.StatusOK, wantSubstr: `"total_commits":1`},
		{name: "contributors", method: http.MethodGet, path: "/contributors", wantCode: http.StatusOK, wantSubstr: `"login":"bob"`},
		{name: "contributor", method: http.MethodGet, path: "/contributors/alice?start=2024-02-01", wantCode: http.StatusOK, wantSubstr: `"login":"alice"`},
		{name: "repository", method: http.MethodGet, path: "/repositories/docs", wantCode: http.StatusOK, wantSubstr: `"docs"`},
		{name: "monthly", method: http.MethodGet, path: "/monthly?start=2024-01-01&end=2024-02-29", wantCode: http.StatusOK, wantSubstr: `2024-02`},
		{name: "report", method: http.MethodGet, path: "/report.xlsx", wantCode: http.StatusOK, wantType: xlsxContentType},
		{name: "refresh", method: http.MethodPost, path: "/refresh", wantCode: http.StatusOK, wantSubstr: `"run_id"`},
		{name: "bad_start", method: http.MethodGet, path: "/summary?start=2024-13-01", wantCode: http.StatusBadRequest, wantErrBody: true},
		{name: "unknown_contributor", method: http.MethodGet, path: "/contributors/nobody", wantCode: http.StatusNotFound, wantErrBody: true},
		{name: "unknown_repository", method: http.MethodGet, path: "/repositories/missing", wantCode: http.StatusNotFound, wantErrBody: true},
		{name: "refresh_requires_post", method: http.MethodGet, path: "/refresh", wantCode: http.StatusMethodNotAllowed},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantCode {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tc.wantCode, rec.Body.String())
			}
			if tc.wantType != "" && rec.Header().Get("Content-Type") != tc.wantType {
				t.Fatalf("content type = %q, want %q", rec.Header().Get("Content-Type"), tc.wantType)
			}
			if tc.wantSubstr != "" && !strings.Contains(rec.Body.String(), tc.wantSubstr) {
				t.Fatalf("body missing %q:\n%s", tc.wantSubstr, rec.Body.String())
			}
			if tc.wantErrBody {
				var payload map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
					t.Fatalf("decode error body: %v", err)
				}
				if payload["error"] == "" {
					t.Fatalf("error body = %s, want error message", rec.Body.String())
				}
			}
		})
	}
}

func TestAPIHandlerReportAttachment(t *testing.T) {
	t.Parallel()

	runtime, _ := newTestRuntime(t, &fakeSource{})
	handler := NewAPIHandler(runtime.Service(), nil)

	req := httptest.NewRequest(http.MethodGet, "/report.xlsx?start=2024-02-01&end=2024-02-29", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="acme-contributors.xlsx"` {
		t.Fatalf("Content-Disposition = %q", got)
	}
	// xlsx files are zip archives.
	if !strings.HasPrefix(rec.Body.String(), "PK") {
		t.Fatalf("report body does not look like an xlsx archive")
	}
}

func TestAPIHandlerNoData(t *testing.T) {
	t.Parallel()

	runtime, _ := newTestRuntime(t, &fakeSource{reposErr: errors.New("org unavailable")})
	handler := NewAPIHandler(runtime.Service(), nil)

	for _, path := range []string{"/aggregate", "/summary", "/contributors", "/monthly", "/report.xlsx"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s code = %d, want %d", path, rec.Code, http.StatusServiceUnavailable)
		}
	}
}
