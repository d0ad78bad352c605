package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/camden-git/mediasysfaces/models"
	"github.com/camden-git/mediasysfaces/permissions"
	"github.com/camden-git/mediasysfaces/repository"
)

// ErrSetupCompleted is returned once any user exists
var ErrSetupCompleted = errors.New("setup has already been completed")

// SetupService bootstraps the first administrator
type SetupService struct {
	users repository.UserRepository
	roles repository.RoleRepository
}

func NewSetupService(users repository.UserRepository, roles repository.RoleRepository) *SetupService {
	return &SetupService{users: users, roles: roles}
}

// SyncSuperAdminRole makes sure the super admin role holds every defined
// permission. it is idempotent and runs on every startup.
func (s *SetupService) SyncSuperAdminRole(ctx context.Context) (*models.Role, error) {
	role, err := s.roles.Upsert(ctx, models.SuperAdminRoleName, permissions.GetAllPermissionKeys())
	if err != nil {
		return nil, fmt.Errorf("failed to sync '%s' role: %w", models.SuperAdminRoleName, err)
	}
	log.Printf("setup: '%s' role synced with %d permissions", role.Name, len(role.GlobalPermissions))
	return role, nil
}

// CreateFirstAdmin creates a super admin, but only while no user exists
func (s *SetupService) CreateFirstAdmin(ctx context.Context, username, password string) (*models.User, error) {
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	if count > 0 {
		return nil, ErrSetupCompleted
	}
	return s.CreateAdmin(ctx, username, password)
}

// CreateAdmin creates a user holding the super admin role
func (s *SetupService) CreateAdmin(ctx context.Context, username, password string) (*models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, validationErrorf("username and password are required")
	}
	role, err := s.SyncSuperAdminRole(ctx)
	if err != nil {
		return nil, err
	}

	user := &models.User{Username: username, GlobalPermissions: []string{}}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}
	if err := s.roles.AddUserToRole(ctx, user.ID, role.ID); err != nil {
		return nil, fmt.Errorf("failed to assign '%s' role to %s: %w", role.Name, user.Username, err)
	}
	log.Printf("setup: created admin user '%s'", user.Username)
	return s.users.GetByID(ctx, user.ID)
}
