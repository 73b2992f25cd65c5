package api

import (
	"net/http"
	"strings"

	"github.com/kayky-cas/romaria-da-vovo/internal/auth"
)

// getPrincipal resolves the caller. A bearer token goes through the
// verifier; without one, dev mode trusts X-Role and defaults to operator,
// other modes fall back to an anonymous viewer.
func (s *Server) getPrincipal(r *http.Request) (auth.Principal, bool) {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		pr, err := s.Auth.Verify(tok)
		if err != nil {
			return auth.Principal{}, false
		}
		return pr, true
	}
	if s.Auth == nil || s.Auth.Mode == "none" {
		return auth.Principal{Subject: "anonymous", Role: auth.RoleOperator}, true
	}
	if s.Auth.Mode == "dev" {
		role := r.Header.Get("X-Role")
		if role == "" {
			role = auth.RoleOperator
		}
		return auth.Principal{Subject: "dev", Role: auth.NormalizeRole(role)}, true
	}
	return auth.Principal{Subject: "anonymous", Role: auth.RoleViewer}, true
}

// requireWrite answers 401/403 and returns false when the caller may not
// modify runs or subscriptions.
func (s *Server) requireWrite(w http.ResponseWriter, r *http.Request) bool {
	p, ok := s.getPrincipal(r)
	if !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token", r.URL.Path)
		return false
	}
	if !p.CanWrite() {
		writeProblem(w, http.StatusForbidden, "Forbidden", "operator role required", r.URL.Path)
		return false
	}
	return true
}

// requireRead answers 401 for a bad token.
func (s *Server) requireRead(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := s.getPrincipal(r); !ok {
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token", r.URL.Path)
		return false
	}
	return true
}
