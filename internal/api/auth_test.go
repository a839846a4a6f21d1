package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

// setAuthEnv configures credentials through the environment and loads them.
func setAuthEnv(t *testing.T, adminUser, adminPass, opUser, opPass string) {
	t.Helper()
	for _, name := range []string{"WORKSHOP_ADMIN_USER", "WORKSHOP_ADMIN_PASS", "WORKSHOP_OPERATOR_USER", "WORKSHOP_OPERATOR_PASS"} {
		t.Setenv(name+"_FILE", "")
	}
	t.Setenv("WORKSHOP_ADMIN_USER", adminUser)
	t.Setenv("WORKSHOP_ADMIN_PASS", adminPass)
	t.Setenv("WORKSHOP_OPERATOR_USER", opUser)
	t.Setenv("WORKSHOP_OPERATOR_PASS", opPass)
	if err := InitAuth(); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	t.Cleanup(func() { auth = nil })
}

func okHandler(called *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}
}

func TestAuthDisabledWhenNoEnvVars(t *testing.T) {
	setAuthEnv(t, "", "", "", "")

	if IsAuthEnabled() {
		t.Error("auth should be disabled when no env vars are set")
	}

	called := false
	handler := RequireAdmin(okHandler(&called))
	req := httptest.NewRequest("POST", "/progress/reset", nil)
	w := httptest.NewRecorder()
	handler(w, req)

	if !called || w.Code != http.StatusOK {
		t.Errorf("handler should run without auth, called=%v code=%d", called, w.Code)
	}
}

func TestAuthRoles(t *testing.T) {
	tests := []struct {
		name      string
		user      string
		pass      string
		adminOnly bool
		wantCode  int
	}{
		{"no credentials", "", "", false, http.StatusUnauthorized},
		{"admin on any-role", "admin", "secret", false, http.StatusOK},
		{"operator on any-role", "operator", "opsecret", false, http.StatusOK},
		{"wrong password", "admin", "wrongpassword", false, http.StatusUnauthorized},
		{"admin on admin-only", "admin", "secret", true, http.StatusOK},
		{"operator on admin-only", "operator", "opsecret", true, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setAuthEnv(t, "admin", "secret", "operator", "opsecret")

			called := false
			handler := RequireAnyRole(okHandler(&called))
			if tt.adminOnly {
				handler = RequireAdmin(okHandler(&called))
			}

			req := httptest.NewRequest("POST", "/level/start", nil)
			if tt.user != "" {
				req.SetBasicAuth(tt.user, tt.pass)
			}
			w := httptest.NewRecorder()
			handler(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if called != (tt.wantCode == http.StatusOK) {
				t.Errorf("handler called=%v for status %d", called, w.Code)
			}
			if w.Code == http.StatusUnauthorized && w.Header().Get("WWW-Authenticate") == "" {
				t.Error("expected WWW-Authenticate header")
			}
		})
	}
}

func TestAuthWithOnlyAdminConfigured(t *testing.T) {
	setAuthEnv(t, "admin", "secret", "", "")

	called := false
	handler := RequireAnyRole(okHandler(&called))

	req := httptest.NewRequest("GET", "/level", nil)
	req.SetBasicAuth("admin", "secret")
	w := httptest.NewRecorder()
	handler(w, req)
	if !called {
		t.Error("handler should be called with valid admin credentials")
	}

	called = false
	req = httptest.NewRequest("GET", "/level", nil)
	req.SetBasicAuth("", "")
	w = httptest.NewRecorder()
	handler(w, req)
	if called || w.Code != http.StatusUnauthorized {
		t.Errorf("empty operator credentials must not match, code=%d", w.Code)
	}
}

func TestAuthFromSecretFile(t *testing.T) {
	dir := t.TempDir()
	passFile := filepath.Join(dir, "admin_pass")
	if err := os.WriteFile(passFile, []byte("from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	setAuthEnv(t, "admin", "", "", "")
	t.Setenv("WORKSHOP_ADMIN_PASS_FILE", passFile)
	if err := InitAuth(); err != nil {
		t.Fatalf("InitAuth: %v", err)
	}
	if !IsAuthEnabled() {
		t.Fatal("auth should be enabled from the secret file")
	}

	called := false
	req := httptest.NewRequest("POST", "/progress/reset", nil)
	req.SetBasicAuth("admin", "from-file")
	RequireAdmin(okHandler(&called))(httptest.NewRecorder(), req)
	if !called {
		t.Error("password read from file should authenticate")
	}

	t.Setenv("WORKSHOP_ADMIN_PASS_FILE", filepath.Join(dir, "missing"))
	if err := InitAuth(); err == nil {
		t.Error("expected error for unreadable secret file")
	}
}

func TestSecureCompare(t *testing.T) {
	if !secureCompare("test", "test") {
		t.Error("identical strings should match")
	}
	if secureCompare("test", "Test") {
		t.Error("different case should not match")
	}
	if secureCompare("", "test") {
		t.Error("empty vs non-empty should not match")
	}
}
