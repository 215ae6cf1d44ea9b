package model

import (
	"strings"
	"time"
)

// ===== Organization Roles =====

// OrgRole represents a member's role inside an organization namespace.
type OrgRole string

const (
	OrgRoleVisitor    OrgRole = "visitor"
	OrgRoleMember     OrgRole = "member"
	OrgRoleAdmin      OrgRole = "admin"
	OrgRoleSuperAdmin OrgRole = "super-admin"
)

// CanRead returns true if the role grants read access to private repos.
func (r OrgRole) CanRead() bool {
	switch r {
	case OrgRoleVisitor, OrgRoleMember, OrgRoleAdmin, OrgRoleSuperAdmin:
		return true
	}
	return false
}

// CanWrite returns true if the role allows committing to namespace repos.
func (r OrgRole) CanWrite() bool {
	switch r {
	case OrgRoleMember, OrgRoleAdmin, OrgRoleSuperAdmin:
		return true
	}
	return false
}

// CanAdmin returns true if the role allows destructive namespace operations.
func (r OrgRole) CanAdmin() bool {
	return r == OrgRoleAdmin || r == OrgRoleSuperAdmin
}

// ===== User Entity =====

// User represents an account. Organizations share the table: rows with
// IsOrg=true have no email or password and never authenticate directly.
type User struct {
	ID                int64     `json:"id" gorm:"primaryKey"`
	Username          string    `json:"username" gorm:"uniqueIndex;not null"`
	NormalizedName    string    `json:"-" gorm:"uniqueIndex;not null"`
	Email             *string   `json:"email,omitempty"`
	PasswordHash      *string   `json:"-"`
	EmailVerified     bool      `json:"email_verified" gorm:"default:false"`
	IsActive          bool      `json:"is_active" gorm:"default:true"`
	IsOrg             bool      `json:"is_org" gorm:"default:false;index"`
	PrivateQuotaBytes *int64    `json:"private_quota_bytes"`
	PublicQuotaBytes  *int64    `json:"public_quota_bytes"`
	PrivateUsedBytes  int64     `json:"private_used_bytes" gorm:"default:0"`
	PublicUsedBytes   int64     `json:"public_used_bytes" gorm:"default:0"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name.
func (User) TableName() string {
	return "users"
}

// QuotaFor returns the quota limit (nil = unlimited) and current usage for
// the given visibility class.
func (u *User) QuotaFor(private bool) (*int64, int64) {
	if private {
		return u.PrivateQuotaBytes, u.PrivateUsedBytes
	}
	return u.PublicQuotaBytes, u.PublicUsedBytes
}

// NormalizeName lowercases a name and strips '-' and '_' so that visually
// colliding user and organization names share one uniqueness domain.
func NormalizeName(name string) string {
	s := strings.ToLower(name)
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, "_", "")
	return s
}

// ===== Organization Membership =====

// UserOrganization links a user to an organization with a role.
type UserOrganization struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	UserID         int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_user_org"`
	OrganizationID int64     `json:"organization_id" gorm:"not null;uniqueIndex:idx_user_org;index"`
	Role           OrgRole   `json:"role" gorm:"not null;default:member"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (UserOrganization) TableName() string {
	return "user_organizations"
}

// ===== API Tokens =====

// Token is an API token record written by the auth service. The core only
// reads it: the stored hash is the SHA3-512 hex of the opaque token value.
type Token struct {
	ID         int64      `json:"id" gorm:"primaryKey"`
	UserID     int64      `json:"user_id" gorm:"not null;index"`
	Name       string     `json:"name"`
	TokenHash  string     `json:"-" gorm:"uniqueIndex;not null"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
}

// TableName returns the database table name.
func (Token) TableName() string {
	return "tokens"
}
