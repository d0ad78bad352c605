package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/camden-git/mediasysfaces/permissions"
)

// User is an account that uploads, tags and reviews
type User struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Username          string    `json:"username" gorm:"uniqueIndex;not null"`
	PasswordHash      string    `json:"-" gorm:"not null"`
	GlobalPermissions []string  `json:"global_permissions" gorm:"serializer:json"`
	Roles             []*Role   `json:"roles,omitempty" gorm:"many2many:user_roles;"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (u *User) SetPassword(password string) error {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hashed)
	return nil
}

func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// HasGlobalPermission checks direct permissions and those of preloaded roles
func (u *User) HasGlobalPermission(permission string) bool {
	if u == nil {
		return false
	}
	for _, p := range u.GlobalPermissions {
		if p == permission {
			return true
		}
	}
	for _, role := range u.Roles {
		if role == nil {
			continue
		}
		for _, p := range role.GlobalPermissions {
			if p == permission {
				return true
			}
		}
	}
	return false
}

// IsReviewer reports whether the user is privileged in the tag workflow: they
// see tags of every status and may approve or reject them.
func (u *User) IsReviewer() bool {
	for _, p := range permissions.ReviewerPermissions {
		if u.HasGlobalPermission(p) {
			return true
		}
	}
	return false
}

// EffectivePermissions merges direct and role permissions without duplicates
func (u *User) EffectivePermissions() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(perms []string) {
		for _, p := range perms {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	add(u.GlobalPermissions)
	for _, role := range u.Roles {
		if role != nil {
			add(role.GlobalPermissions)
		}
	}
	return out
}
