package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/RepairWorkshop/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// credential is one user/password pair and the role it grants.
type credential struct {
	user string
	pass string
	role Role
}

func (c credential) set() bool {
	return c.user != "" && c.pass != ""
}

type authConfig struct {
	// Checked in order; admin first.
	creds   []credential
	enabled bool
}

var auth *authConfig

// InitAuth loads credentials from WORKSHOP_ADMIN_USER/PASS and
// WORKSHOP_OPERATOR_USER/PASS, each also readable through the *_FILE
// convention. Without admin credentials authentication is disabled.
func InitAuth() error {
	names := []struct {
		prefix string
		role   Role
	}{
		{"WORKSHOP_ADMIN", RoleAdmin},
		{"WORKSHOP_OPERATOR", RoleOperator},
	}

	cfg := &authConfig{}
	for _, n := range names {
		user, err := config.ResolveSecret(n.prefix + "_USER")
		if err != nil {
			return fmt.Errorf("failed to resolve %s_USER: %w", n.prefix, err)
		}
		pass, err := config.ResolveSecret(n.prefix + "_PASS")
		if err != nil {
			return fmt.Errorf("failed to resolve %s_PASS: %w", n.prefix, err)
		}
		cfg.creds = append(cfg.creds, credential{user: user, pass: pass, role: n.role})
	}
	cfg.enabled = cfg.creds[0].set()

	auth = cfg
	return nil
}

// IsAuthEnabled returns true if authentication is configured.
func IsAuthEnabled() bool {
	return auth != nil && auth.enabled
}

// authenticate returns the caller's role, or "" for bad credentials.
// With auth disabled every caller is admin.
func authenticate(r *http.Request) Role {
	if !IsAuthEnabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	for _, c := range auth.creds {
		if !c.set() {
			continue
		}
		if secureCompare(user, c.user) && secureCompare(pass, c.pass) {
			return c.role
		}
	}
	return ""
}

// secureCompare performs constant-time string comparison.
func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Repair Workshop"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin OR operator role.
func RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return RequireRole(handler, RoleAdmin)
}
