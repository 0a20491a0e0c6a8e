package driven

import "context"

// RoleRepository defines the interface for role and membership persistence.
type RoleRepository interface {
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
