package store

import (
	"context"
	"fmt"

	"admissions-portal/internal/auth"
	"admissions-portal/internal/models"
)

type adminStore struct {
	*MySQLStore
}

func (ms *MySQLStore) Admins() auth.Store {
	return &adminStore{MySQLStore: ms}
}

func (s *adminStore) AdminByEmail(ctx context.Context, email string) (models.AdminProfile, error) {
	a, err := QueryNamedOne[models.AdminProfile](ctx, s.db, `
		SELECT id, email, password, full_name, role, permissions, is_banned
		FROM admin_profiles WHERE email = :email`,
		map[string]any{"email": email})
	if isNoRows(err) {
		return a, auth.ErrNotFound
	}
	return a, err
}

func (s *adminStore) CreateAdmin(ctx context.Context, a *models.AdminProfile) error {
	id, err := ExecNamedLastID(ctx, s.db, `
		INSERT INTO admin_profiles (email, password, full_name, role, permissions, is_banned)
		VALUES (:email, :password, :fullName, :role, :permissions, :banned)`,
		map[string]any{
			"email":       a.Email,
			"password":    a.Password,
			"fullName":    a.FullName,
			"role":        a.Role,
			"permissions": a.Permissions,
			"banned":      a.IsBanned,
		})
	if isDuplicate(err) {
		return auth.ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("insert admin: %w", err)
	}
	a.ID = id
	return nil
}
