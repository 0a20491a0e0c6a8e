package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"generic-role-provider/internal/core/domain"
	"generic-role-provider/internal/core/ports/driven"
	"generic-role-provider/internal/core/ports/driving"
)

// PermissionEnforcerImpl implements the PermissionEnforcer interface. Role
// membership comes from the role repository, grants from the permission
// repository.
type PermissionEnforcerImpl struct {
	roles driven.RoleRepository
	perms driven.PermissionRepository
	log   *zap.Logger
}

// NewPermissionEnforcerImpl creates a new PermissionEnforcerImpl.
func NewPermissionEnforcerImpl(roles driven.RoleRepository, perms driven.PermissionRepository, log *zap.Logger) driving.PermissionEnforcer {
	if log == nil {
		log = zap.NewNop()
	}
	return &PermissionEnforcerImpl{roles: roles, perms: perms, log: log}
}

// Grant allows role to perform action on object. The role must exist.
func (e *PermissionEnforcerImpl) Grant(ctx context.Context, role, object, action string) (bool, error) {
	if role == "" || object == "" || action == "" {
		return false, fmt.Errorf("%w: role, object and action are required", domain.ErrInvalidInput)
	}

	exists, err := e.roles.RoleExists(ctx, role)
	if err != nil {
		return false, err
	}
	if !exists {
		return false, fmt.Errorf("%w: %s", domain.ErrRoleNotFound, role)
	}
	return e.perms.AddPolicy(role, object, action)
}

func (e *PermissionEnforcerImpl) Revoke(role, object, action string) (bool, error) {
	return e.perms.RemovePolicy(role, object, action)
}

func (e *PermissionEnforcerImpl) RevokeAll(role string) (bool, error) {
	return e.perms.RemovePoliciesForRole(role)
}

func (e *PermissionEnforcerImpl) GetPermissions() ([]domain.Permission, error) {
	policies, err := e.perms.GetPolicy()
	if err != nil {
		return nil, err
	}

	permissions := make([]domain.Permission, 0, len(policies))
	for _, p := range policies {
		if len(p) < 3 {
			continue
		}
		permissions = append(permissions, domain.Permission{Role: p[0], Object: p[1], Action: p[2]})
	}
	return permissions, nil
}

// Enforce allows the request when any role of user grants action on object.
// An unknown user is denied rather than reported as an error.
func (e *PermissionEnforcerImpl) Enforce(ctx context.Context, user, object, action string) (domain.EnforceResponse, error) {
	roles, err := e.roles.GetRolesForUser(ctx, user)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.EnforceResponse{Allowed: false, Message: "unknown user"}, nil
	}
	if err != nil {
		return domain.EnforceResponse{}, err
	}

	for _, role := range roles {
		allowed, err := e.perms.Allows(role, object, action)
		if err != nil {
			return domain.EnforceResponse{}, err
		}
		if allowed {
			e.log.Debug("access granted", zap.String("user", user), zap.String("role", role),
				zap.String("object", object), zap.String("action", action))
			return domain.EnforceResponse{Allowed: true, Role: role}, nil
		}
	}
	return domain.EnforceResponse{Allowed: false, Message: "no role grants this action"}, nil
}
