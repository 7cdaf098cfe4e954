package http

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/smart-exam/smartexam/internal/rbac"
)

// ---- grade levels ----

type gradeRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func ListGradesHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(), `SELECT id, name FROM grades ORDER BY name`)
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		defer rows.Close()
		out := []gradeRow{}
		for rows.Next() {
			var g gradeRow
			if err := rows.Scan(&g.ID, &g.Name); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			out = append(out, g)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func AddGradeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		g := gradeRow{ID: uuid.NewString(), Name: strings.TrimSpace(req.Name)}
		if _, err := db.ExecContext(r.Context(), `INSERT INTO grades (id, name) VALUES ($1,$2)`, g.ID, g.Name); err != nil {
			http.Error(w, "grade exists or store unavailable", http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	}
}

func RenameGradeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name string `json:"name"`
		}
		if err := decodeJSON(r, &req); err != nil || strings.TrimSpace(req.Name) == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		res, err := db.ExecContext(r.Context(), `UPDATE grades SET name=$1 WHERE id=$2`,
			strings.TrimSpace(req.Name), chi.URLParam(r, "gradeID"))
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteGradeHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := db.ExecContext(r.Context(), `DELETE FROM grades WHERE id=$1`, chi.URLParam(r, "gradeID"))
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- user management ----

type userRow struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	Approved  bool   `json:"approved"`
	CreatedAt int64  `json:"created_at"`
}

// GET /users?role=teacher&pending=1
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := `SELECT id, name, username, role, approved, created_at FROM users`
		var (
			where []string
			args  []any
		)
		if role := strings.TrimSpace(r.URL.Query().Get("role")); role != "" {
			args = append(args, role)
			where = append(where, "role=$1")
		}
		if r.URL.Query().Get("pending") == "1" {
			where = append(where, "approved=FALSE")
		}
		if len(where) > 0 {
			q += " WHERE " + strings.Join(where, " AND ")
		}
		q += " ORDER BY created_at DESC"
		rows, err := db.QueryContext(r.Context(), q, args...)
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.Role, &u.Approved, &u.CreatedAt); err != nil {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /users/{userID}/approve
func ApproveUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := db.ExecContext(r.Context(), `UPDATE users SET approved=TRUE WHERE id=$1`, chi.URLParam(r, "userID"))
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /users/{userID}/role  { "role": "teacher|admin|superadmin" }
// Admins cannot promote anyone to superadmin.
func ChangeRoleHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Role string `json:"role"`
		}
		if err := decodeJSON(r, &req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		switch req.Role {
		case "teacher", "admin", "superadmin":
		default:
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		if req.Role == "superadmin" && rbac.RoleFromContext(r.Context()) != "superadmin" {
			http.Error(w, "only superadmin can assign this role", http.StatusForbidden)
			return
		}
		res, err := db.ExecContext(r.Context(), `UPDATE users SET role=$1 WHERE id=$2`, req.Role, chi.URLParam(r, "userID"))
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /users/{userID}/reset-password  { "password": "..." }
func ResetPasswordHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if err := decodeJSON(r, &req); err != nil || len(req.Password) < 6 {
			http.Error(w, "password of 6+ chars required", http.StatusBadRequest)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash password", http.StatusInternalServerError)
			return
		}
		res, err := db.ExecContext(r.Context(), `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), chi.URLParam(r, "userID"))
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /users/{userID}. Also used to reject a pending teacher.
func DeleteUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		if id == rbac.SubjectFromContext(r.Context()) {
			http.Error(w, "cannot delete own account", http.StatusConflict)
			return
		}
		res, err := db.ExecContext(r.Context(), `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

