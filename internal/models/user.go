package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

const (
	RoleSuperAdmin = "SUPER_ADMIN"
	RoleAdmin      = "ADMIN"
)

const (
	PermissionRoot  = "access_root"
	PermissionQueue = "access_queue"
)

type Permissions struct {
	AccessRoot  bool `json:"access_root"`
	AccessQueue bool `json:"access_queue"`
}

func (p Permissions) Has(name string) bool {
	switch name {
	case PermissionRoot:
		return p.AccessRoot
	case PermissionQueue:
		return p.AccessQueue
	}
	return false
}

func (p Permissions) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Permissions) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*p = Permissions{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	}
	return fmt.Errorf("unsupported permissions type %T", src)
}

/*
|--------------------------------------------------------------------------
| DATABASE MODEL
|--------------------------------------------------------------------------
*/
type AdminProfile struct {
	ID          int64       `db:"id"`
	Email       string      `db:"email"`
	Password    string      `db:"password"`
	FullName    string      `db:"full_name"`
	Role        string      `db:"role"`
	Permissions Permissions `db:"permissions"`
	IsBanned    bool        `db:"is_banned"`
}

/*
|--------------------------------------------------------------------------
| REQUEST
|--------------------------------------------------------------------------
*/
type LoginRequest struct {
	Email          string `json:"email" validate:"required,email"`
	Password       string `json:"password" validate:"required"`
	RecaptchaToken string `json:"recaptcha_token"`
}

/*
|--------------------------------------------------------------------------
| RESPONSE DTO
|--------------------------------------------------------------------------
*/
type AdminResponse struct {
	ID          int64       `json:"id"`
	Email       string      `json:"email"`
	FullName    string      `json:"full_name"`
	Role        string      `json:"role"`
	Permissions Permissions `json:"permissions"`
}

type LoginResponse struct {
	Token string        `json:"token"`
	User  AdminResponse `json:"user"`
}

func ToAdminResponse(a AdminProfile) AdminResponse {
	return AdminResponse{
		ID:          a.ID,
		Email:       a.Email,
		FullName:    a.FullName,
		Role:        a.Role,
		Permissions: a.Permissions,
	}
}
