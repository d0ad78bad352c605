package models

import "time"

// SuperAdminRoleName is the role kept in sync with every defined permission
const SuperAdminRoleName = "super_admin"

// Role is a named bundle of global permissions
type Role struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Name              string    `json:"name" gorm:"uniqueIndex;not null"`
	GlobalPermissions []string  `json:"global_permissions" gorm:"serializer:json"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
	Users             []*User   `json:"-" gorm:"many2many:user_roles;"`
}

// UserRole is the join table between users and roles
type UserRole struct {
	UserID    uint      `json:"user_id" gorm:"primaryKey"`
	RoleID    uint      `json:"role_id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserRole) TableName() string {
	return "user_roles"
}
