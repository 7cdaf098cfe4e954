package auth

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	authmw "github.com/smart-exam/smartexam/internal/auth/middleware"
	"github.com/smart-exam/smartexam/internal/config"
)

// POST /auth/login  { "username": "...", "password": "..." }
// Staff login: the role comes from the users table, never from the request.
func LoginHandler(a *authmw.AuthService, db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		var (
			id, hash, role string
			approved       bool
		)
		err := db.QueryRowContext(r.Context(),
			`SELECT id, password_hash, role, approved FROM users WHERE username=$1`,
			strings.TrimSpace(req.Username)).Scan(&id, &hash, &role, &approved)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
			http.Error(w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		if !approved {
			http.Error(w, "account pending approval", http.StatusForbidden)
			return
		}
		tok, err := a.IssueJWT(authmw.Claims{Sub: id, Role: role})
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok, "role": role})
	}
}

// POST /auth/register  { "name": "...", "username": "...", "password": "..." }
// Teachers self-register and wait for admin approval.
func RegisterTeacherHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name     string `json:"name"`
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.Username = strings.TrimSpace(req.Username)
		if req.Name == "" || req.Username == "" || len(req.Password) < 6 {
			http.Error(w, "name, username and a password of 6+ chars required", http.StatusBadRequest)
			return
		}
		var exists int
		err := db.QueryRowContext(r.Context(), `SELECT 1 FROM users WHERE username=$1`, req.Username).Scan(&exists)
		if err == nil {
			http.Error(w, "username already exists", http.StatusConflict)
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash password", http.StatusInternalServerError)
			return
		}
		id := uuid.NewString()
		_, err = db.ExecContext(r.Context(),
			`INSERT INTO users (id,name,username,password_hash,role,approved,created_at)
			 VALUES ($1,$2,$3,$4,'teacher',$5,$6)`,
			id, req.Name, req.Username, string(hash), false, time.Now().Unix())
		if err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "status": "pending approval"})
	}
}

// POST /auth/student  { "student_name": "...", "grade": "...", "class_code": "..." }
// Students identify by name and grade; the class code is the shared secret a
// teacher hands out, supplied via config rather than baked into the code.
func StudentLoginHandler(a *authmw.AuthService, cfg config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			StudentName string `json:"student_name"`
			Grade       string `json:"grade"`
			ClassCode   string `json:"class_code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		req.StudentName = strings.TrimSpace(req.StudentName)
		req.Grade = strings.TrimSpace(req.Grade)
		if req.StudentName == "" || req.Grade == "" {
			http.Error(w, "student_name and grade required", http.StatusBadRequest)
			return
		}
		if cfg.ClassCode == "" || req.ClassCode != cfg.ClassCode {
			http.Error(w, "invalid class code", http.StatusUnauthorized)
			return
		}
		tok, err := a.IssueJWT(authmw.Claims{
			Sub:   "student|" + uuid.NewString(),
			Role:  "student",
			Name:  req.StudentName,
			Grade: req.Grade,
		})
		if err != nil {
			http.Error(w, "issue token", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": tok})
	}
}
