package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/camden-git/mediasysfaces/models"
)

type GormRoleRepository struct {
	db *gorm.DB
}

func NewGormRoleRepository(db *gorm.DB) RoleRepository {
	return &GormRoleRepository{db: db}
}

func (r *GormRoleRepository) GetByName(ctx context.Context, name string) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// Upsert creates the role or replaces the permissions of an existing one
func (r *GormRoleRepository) Upsert(ctx context.Context, name string, permissions []string) (*models.Role, error) {
	var role models.Role
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("name = ?", name).First(&role).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			role = models.Role{Name: name, GlobalPermissions: permissions}
			return tx.Create(&role).Error
		}
		if err != nil {
			return err
		}
		role.GlobalPermissions = permissions
		return tx.Model(&role).Select("global_permissions").Updates(&role).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert role %s: %w", name, err)
	}
	return &role, nil
}

func (r *GormRoleRepository) AddUserToRole(ctx context.Context, userID, roleID uint) error {
	userRole := models.UserRole{
		UserID: userID,
		RoleID: roleID,
	}
	// assigning twice is not an error
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&userRole).Error
}
