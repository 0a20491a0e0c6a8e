package services

import (
	"context"

	"go.uber.org/zap"

	"generic-role-provider/internal/core/ports/driven"
	"generic-role-provider/internal/core/ports/driving"
)

// RoleServiceImpl implements the RoleService interface.
type RoleServiceImpl struct {
	repo  driven.RoleRepository
	perms driven.PermissionRepository
	log   *zap.Logger
}

// NewRoleServiceImpl creates a new RoleServiceImpl. perms may be nil, in
// which case deleting a role leaves no permissions to clean up.
func NewRoleServiceImpl(repo driven.RoleRepository, perms driven.PermissionRepository, log *zap.Logger) driving.RoleService {
	if log == nil {
		log = zap.NewNop()
	}
	return &RoleServiceImpl{repo: repo, perms: perms, log: log}
}

func (s *RoleServiceImpl) CreateRole(ctx context.Context, roleName string) error {
	err := s.repo.CreateRole(ctx, roleName)
	s.warn(err, "create role", zap.String("role", roleName))
	return err
}

// DeleteRole removes the role and, once it is gone, every permission it held.
func (s *RoleServiceImpl) DeleteRole(ctx context.Context, roleName string, throwOnPopulatedRole bool) (bool, error) {
	deleted, err := s.repo.DeleteRole(ctx, roleName, throwOnPopulatedRole)
	if err != nil {
		s.warn(err, "delete role", zap.String("role", roleName))
		return false, err
	}

	if deleted && s.perms != nil {
		if _, err := s.perms.RemovePoliciesForRole(roleName); err != nil {
			s.log.Warn("failed to revoke permissions of deleted role", zap.String("role", roleName), zap.Error(err))
		}
	}
	return deleted, nil
}

func (s *RoleServiceImpl) RoleExists(ctx context.Context, roleName string) (bool, error) {
	exists, err := s.repo.RoleExists(ctx, roleName)
	s.warn(err, "check role", zap.String("role", roleName))
	return exists, err
}

func (s *RoleServiceImpl) GetAllRoles(ctx context.Context) ([]string, error) {
	roles, err := s.repo.GetAllRoles(ctx)
	s.warn(err, "list roles")
	return roles, err
}

func (s *RoleServiceImpl) AddUsersToRoles(ctx context.Context, usernames, roleNames []string) error {
	err := s.repo.AddUsersToRoles(ctx, usernames, roleNames)
	s.warn(err, "add users to roles", zap.Strings("users", usernames), zap.Strings("roles", roleNames))
	return err
}

func (s *RoleServiceImpl) RemoveUsersFromRoles(ctx context.Context, usernames, roleNames []string) error {
	err := s.repo.RemoveUsersFromRoles(ctx, usernames, roleNames)
	s.warn(err, "remove users from roles", zap.Strings("users", usernames), zap.Strings("roles", roleNames))
	return err
}

func (s *RoleServiceImpl) IsUserInRole(ctx context.Context, username, roleName string) (bool, error) {
	inRole, err := s.repo.IsUserInRole(ctx, username, roleName)
	s.warn(err, "check membership", zap.String("user", username), zap.String("role", roleName))
	return inRole, err
}

func (s *RoleServiceImpl) GetRolesForUser(ctx context.Context, username string) ([]string, error) {
	roles, err := s.repo.GetRolesForUser(ctx, username)
	s.warn(err, "list roles of user", zap.String("user", username))
	return roles, err
}

func (s *RoleServiceImpl) GetUsersInRole(ctx context.Context, roleName string) ([]string, error) {
	users, err := s.repo.GetUsersInRole(ctx, roleName)
	s.warn(err, "list users in role", zap.String("role", roleName))
	return users, err
}

func (s *RoleServiceImpl) FindUsersInRole(ctx context.Context, roleName, usernameToMatch string) ([]string, error) {
	users, err := s.repo.FindUsersInRole(ctx, roleName, usernameToMatch)
	s.warn(err, "find users in role", zap.String("role", roleName), zap.String("match", usernameToMatch))
	return users, err
}

func (s *RoleServiceImpl) warn(err error, op string, fields ...zap.Field) {
	if err == nil {
		return
	}
	s.log.Warn(op+" failed", append(fields, zap.Error(err))...)
}
