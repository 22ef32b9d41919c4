package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/kitchenops/checklists/internal/appctx"
)

// Headers set by the authenticating gateway in front of this service.
const (
	headerTenant = "X-Tenant-ID"
	headerUser   = "X-User-ID"
	headerAdmin  = "X-User-Admin"
)

// RequirePrincipal is middleware: resolves the caller from the gateway
// headers and rejects requests without a tenant.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := appctx.Principal{TenantID: strings.TrimSpace(r.Header.Get(headerTenant))}
		if p.TenantID == "" {
			writeCode(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if uid, err := strconv.ParseUint(strings.TrimSpace(r.Header.Get(headerUser)), 10, 64); err == nil {
			p.UserID = uint(uid)
		}
		switch strings.ToLower(strings.TrimSpace(r.Header.Get(headerAdmin))) {
		case "1", "true", "yes":
			p.IsAdmin = true
		}
		next.ServeHTTP(w, r.WithContext(appctx.WithPrincipal(r.Context(), p)))
	})
}

// RequireAdmin blocks access unless the resolved principal is an admin.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := appctx.PrincipalFrom(r.Context())
		if !ok {
			writeCode(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if !p.IsAdmin {
			writeCode(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func principal(r *http.Request) appctx.Principal {
	p, _ := appctx.PrincipalFrom(r.Context())
	return p
}
