package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/flicky/storefront-api/internal/identity"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/repository"
)

// AccessControl resolves who is calling and what they may do. Roles are
// looked up on every call and never cached.
type AccessControl struct {
	roleRepo repository.RoleRepository
	userRepo repository.UserRepository
}

func NewAccessControl(roleRepo repository.RoleRepository, userRepo repository.UserRepository) *AccessControl {
	return &AccessControl{roleRepo: roleRepo, userRepo: userRepo}
}

func (a *AccessControl) ResolveCaller(ctx context.Context) (uuid.UUID, bool) {
	return identity.Caller(ctx)
}

// RoleOf returns the user's role, model.DefaultRole when no record exists.
func (a *AccessControl) RoleOf(ctx context.Context, userID uuid.UUID) (model.Role, error) {
	ur, err := a.roleRepo.GetByUserID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}
	if ur == nil {
		return model.DefaultRole, nil
	}
	return ur.Role, nil
}

func (a *AccessControl) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	role, err := a.RoleOf(ctx, userID)
	if err != nil {
		return false, err
	}
	return role == model.RoleAdmin, nil
}

// RequireAdmin returns the caller when it is an admin and ErrUnauthorized otherwise,
// anonymous callers included.
func (a *AccessControl) RequireAdmin(ctx context.Context) (uuid.UUID, error) {
	caller, ok := a.ResolveCaller(ctx)
	if !ok {
		return uuid.Nil, ErrUnauthorized
	}
	admin, err := a.IsAdmin(ctx, caller)
	if err != nil {
		return uuid.Nil, err
	}
	if !admin {
		return uuid.Nil, ErrUnauthorized
	}
	return caller, nil
}

// CurrentRole returns nil for anonymous callers.
func (a *AccessControl) CurrentRole(ctx context.Context) (*model.Role, error) {
	caller, ok := a.ResolveCaller(ctx)
	if !ok {
		return nil, nil
	}
	role, err := a.RoleOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// InitializeAdmin makes the caller the first admin. It fails once any admin exists.
func (a *AccessControl) InitializeAdmin(ctx context.Context) error {
	caller, ok := a.ResolveCaller(ctx)
	if !ok {
		return ErrUnauthenticated
	}
	granted, err := a.roleRepo.BootstrapAdmin(ctx, caller)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	if !granted {
		return ErrAdminAlreadyInitialized
	}
	return nil
}

func (a *AccessControl) SetUserRole(ctx context.Context, userID uuid.UUID, role model.Role) error {
	if _, ok := a.ResolveCaller(ctx); !ok {
		return ErrUnauthenticated
	}
	if _, err := a.RequireAdmin(ctx); err != nil {
		return err
	}
	if !role.Valid() {
		return ErrInvalidRole
	}

	user, err := a.userRepo.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return ErrUserNotFound
	}
	return a.roleRepo.Upsert(ctx, userID, role)
}
