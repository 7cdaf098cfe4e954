package auth

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/smart-exam/smartexam/internal/rbac"
)

// AttachRoleFromDB replaces the token's role claim with the authoritative
// role from the users table, so admin role changes take effect without
// waiting for the token to expire. Students have no users row and keep
// their claim role.
func AttachRoleFromDB(db *sql.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claimRole := rbac.RoleFromContext(ctx)
			if claimRole == "student" {
				next.ServeHTTP(w, r)
				return
			}
			sub := rbac.SubjectFromContext(ctx)

			var role string
			var approved bool
			err := db.QueryRowContext(ctx,
				`SELECT role, approved FROM users WHERE id=$1`, sub).Scan(&role, &approved)
			switch {
			case err == nil:
				if !approved {
					http.Error(w, "account pending approval", http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case errors.Is(err, sql.ErrNoRows):
				http.Error(w, "forbidden", http.StatusForbidden)
			default:
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
			}
		})
	}
}
