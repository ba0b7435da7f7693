package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Ali-hajj/youware-source-code/internal/license"
	"github.com/Ali-hajj/youware-source-code/internal/store"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

const seedJSON = `[
  {"serial_number": "ACTIVE-1", "user_name": "Alice", "plan_type": "yearly", "start_date": "2025-01-01", "expiry_date": "2026-01-01"},
  {"serial_number": "OLD-1", "user_name": "Bob", "plan_type": "monthly", "start_date": "2025-01-01", "expiry_date": "2025-02-01"},
  {"serial_number": "OFF-1", "user_name": "Carol", "plan_type": "monthly", "start_date": "2025-01-01", "expiry_date": "2026-01-01", "status": "disabled"}
]`

func newTestServer(t *testing.T) (*Server, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logrus.SetOutput(io.Discard)

	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(seedPath, []byte(seedJSON), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}

	server, err := NewServer(Config{
		DBPath:   filepath.Join(dir, "licenses.db"),
		SeedPath: seedPath,
		SilentDB: true,
		Now:      func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { _ = server.Close() })

	router, err := server.Router()
	if err != nil {
		t.Fatalf("router: %v", err)
	}
	return server, router
}

func postCheck(t *testing.T, router http.Handler, body string) (int, CheckResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/licenses/check", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp CheckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return rec.Code, resp
}

func TestHandleCheck(t *testing.T) {
	_, router := newTestServer(t)

	tests := []struct {
		name   string
		body   string
		status int
		want   CheckResponse
	}{
		{"valid", `{"serial": "ACTIVE-1"}`, http.StatusOK, CheckResponse{Valid: true, User: "Alice", Expiry: "2026-01-01", Plan: "yearly", Status: "active"}},
		{"valid trimmed", `{"serial": "  ACTIVE-1 "}`, http.StatusOK, CheckResponse{Valid: true, User: "Alice", Expiry: "2026-01-01", Plan: "yearly", Status: "active"}},
		{"unknown", `{"serial": "NOPE"}`, http.StatusNotFound, CheckResponse{Reason: "Invalid serial"}},
		{"disabled", `{"serial": "OFF-1"}`, http.StatusForbidden, CheckResponse{Reason: "License inactive", Status: "disabled"}},
		{"expired", `{"serial": "OLD-1"}`, http.StatusForbidden, CheckResponse{Reason: "License expired", Expiry: "2025-02-01"}},
		{"missing serial", `{}`, http.StatusBadRequest, CheckResponse{Reason: "Serial is required"}},
		{"non string serial", `{"serial": 42}`, http.StatusBadRequest, CheckResponse{Reason: "Serial is required"}},
		{"garbage", `serial=ACTIVE-1`, http.StatusBadRequest, CheckResponse{Reason: "Serial is required"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := postCheck(t, router, tc.body)
			if status != tc.status {
				t.Fatalf("expected status %d got %d", tc.status, status)
			}
			if resp != tc.want {
				t.Fatalf("expected %+v got %+v", tc.want, resp)
			}
		})
	}
}

func TestHandleCheckMarksExpired(t *testing.T) {
	server, router := newTestServer(t)

	postCheck(t, router, `{"serial": "OLD-1"}`)

	record, err := server.db.FindLicenseBySerial("OLD-1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record.Status != store.StatusExpired {
		t.Fatalf("expected stored status expired, got %q", record.Status)
	}

	// once flipped, the record reports as inactive
	status, resp := postCheck(t, router, `{"serial": "OLD-1"}`)
	if status != http.StatusForbidden || resp.Reason != "License inactive" || resp.Status != store.StatusExpired {
		t.Fatalf("unexpected follow-up response %d %+v", status, resp)
	}
}

func TestHandleCheckInvalidStoredExpiry(t *testing.T) {
	server, router := newTestServer(t)
	if err := server.db.UpsertLicense(&store.License{SerialNumber: "BROKEN", PlanType: store.PlanMonthly, ExpiryDate: "someday", Status: store.StatusActive}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	status, resp := postCheck(t, router, `{"serial": "BROKEN"}`)
	if status != http.StatusInternalServerError || resp.Reason != "Invalid expiry date" {
		t.Fatalf("unexpected response %d %+v", status, resp)
	}
}

func TestHandleHealth(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var body struct {
		Status   string `json:"status"`
		Licenses int64  `json:"licenses"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" || body.Licenses != 3 {
		t.Fatalf("unexpected health body %+v", body)
	}
}

func TestNewServerRequiresDBPath(t *testing.T) {
	if _, err := NewServer(Config{}); err == nil {
		t.Fatalf("expected error without db path")
	}
}

func TestNewServerRejectsInvalidSeed(t *testing.T) {
	dir := t.TempDir()
	seedPath := filepath.Join(dir, "seed.json")
	if err := os.WriteFile(seedPath, []byte(`[{"serial_number": "X", "start_date": "2025-01-01", "expiry_date": "bad"}]`), 0o600); err != nil {
		t.Fatalf("write seed: %v", err)
	}
	if _, err := NewServer(Config{DBPath: filepath.Join(dir, "licenses.db"), SeedPath: seedPath, SilentDB: true}); err == nil {
		t.Fatalf("expected seed validation error")
	}
}

func TestCheckerAgainstServer(t *testing.T) {
	_, router := newTestServer(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	quiet := logrus.New()
	quiet.SetOutput(io.Discard)

	var out bytes.Buffer
	checker := license.NewChecker(license.Config{
		Endpoint: srv.URL + "/api/licenses/check",
		Now:      func() time.Time { return fixedNow },
		Output:   &out,
		Logger:   quiet,
	})

	tests := []struct {
		name     string
		serial   string
		kind     error
		contains string
	}{
		{"accepted", "ACTIVE-1", nil, ""},
		{"unknown", "NOPE", license.ErrRejected, "Invalid serial"},
		{"disabled", "OFF-1", license.ErrRejected, "License inactive"},
		// the first check flips the record to expired, later checks see it inactive
		{"expired", "OLD-1", license.ErrRejected, "serial rejected: License"},
		{"empty", "  ", license.ErrEmptySerial, "serial is empty"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for attempt := 0; attempt < 2; attempt++ {
				verdict, err := checker.Verify(context.Background(), tc.serial)
				if tc.kind == nil {
					if err != nil {
						t.Fatalf("attempt %d: verify: %v", attempt, err)
					}
					if verdict.User != "Alice" || verdict.Plan != "yearly" || verdict.Expiry != "2026-01-01" {
						t.Fatalf("unexpected verdict %+v", verdict)
					}
					continue
				}
				if !errors.Is(err, tc.kind) {
					t.Fatalf("attempt %d: expected %v got %v", attempt, tc.kind, err)
				}
				if !strings.Contains(err.Error(), tc.contains) {
					t.Fatalf("expected %q in %q", tc.contains, err.Error())
				}
			}
		})
	}

	if got := strings.Count(out.String(), "[license] OK serial=ACTIVE-1 plan=yearly user=Alice expires=2026-01-01"); got != 2 {
		t.Fatalf("expected two confirmation lines, got %q", out.String())
	}
}
