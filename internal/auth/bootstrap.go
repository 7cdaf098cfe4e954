package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/smart-exam/smartexam/internal/config"
)

// EnsureAdmin seeds the superadmin account on first boot. The password hash
// comes from config; there is no built-in bypass code.
func EnsureAdmin(ctx context.Context, db *sql.DB, cfg config.Config) error {
	if cfg.AdminUser == "" || cfg.AdminPassHash == "" {
		return nil
	}
	var exists int
	err := db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE role='superadmin'`).Scan(&exists)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO users (id,name,username,password_hash,role,approved,created_at)
		 VALUES ($1,'System Admin',$2,$3,'superadmin',$4,$5)`,
		uuid.NewString(), cfg.AdminUser, cfg.AdminPassHash, true, time.Now().Unix())
	return err
}
