package driving

import (
	"context"

	"generic-role-provider/internal/core/domain"
)

// RoleService is the surface the host membership framework calls into.
type RoleService interface {
	CreateRole(ctx context.Context, roleName string) error
	DeleteRole(ctx context.Context, roleName string, throwOnPopulatedRole bool) (bool, error)
	RoleExists(ctx context.Context, roleName string) (bool, error)
	GetAllRoles(ctx context.Context) ([]string, error)
	AddUsersToRoles(ctx context.Context, usernames, roleNames []string) error
	RemoveUsersFromRoles(ctx context.Context, usernames, roleNames []string) error
	IsUserInRole(ctx context.Context, username, roleName string) (bool, error)
	GetRolesForUser(ctx context.Context, username string) ([]string, error)
	GetUsersInRole(ctx context.Context, roleName string) ([]string, error)
	FindUsersInRole(ctx context.Context, roleName, usernameToMatch string) ([]string, error)
}

// PermissionEnforcer grants permissions to roles and checks them for users.
type PermissionEnforcer interface {
	Grant(ctx context.Context, role, object, action string) (bool, error)
	Revoke(role, object, action string) (bool, error)
	RevokeAll(role string) (bool, error)
	GetPermissions() ([]domain.Permission, error)
	Enforce(ctx context.Context, user, object, action string) (domain.EnforceResponse, error)
}
