// Package rolestore keeps roles and role memberships in tables whose names
// are supplied at runtime through a Mapping.
//
// The store enforces what the schema may not: a role name is created once,
// a user is in a role at most once, and users and roles must exist before
// they are linked. Nothing is cached; every call queries the database.
//
// By default multi-statement operations are not wrapped in a transaction,
// so a failure part way through AddUsersToRoles, RemoveUsersFromRoles or a
// cascading DeleteRole leaves the statements already executed in place.
// WithScopedTransactions runs each such operation in one transaction.
package rolestore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"generic-role-provider/internal/adapters/driven/persistence/sqlexec"
	"generic-role-provider/internal/core/domain"
	"generic-role-provider/internal/core/ports/driven"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger. The default discards everything.
func WithLogger(log *zap.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithScopedTransactions wraps every multi-statement operation in a
// transaction so that it either completes or leaves no trace.
func WithScopedTransactions() Option {
	return func(s *Store) {
		s.scopedTransactions = true
	}
}

// WithRoleIDGenerator makes CreateRole insert an id produced by gen instead
// of relying on a database default.
func WithRoleIDGenerator(gen func() any) Option {
	return func(s *Store) {
		s.newRoleID = gen
	}
}

// WithUUIDRoleIDs generates role ids as UUID strings.
func WithUUIDRoleIDs() Option {
	return WithRoleIDGenerator(func() any {
		return uuid.NewString()
	})
}

// Store implements driven.RoleRepository over a configurable schema.
type Store struct {
	factory            sqlexec.Factory
	mapping            Mapping
	sql                statements
	log                *zap.Logger
	scopedTransactions bool
	newRoleID          func() any
}

var _ driven.RoleRepository = (*Store)(nil)

// New creates a Store. The mapping is validated and its identifiers quoted
// with quoter once, here.
func New(factory sqlexec.Factory, mapping Mapping, quoter Quoter, opts ...Option) (*Store, error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: connection factory is required", domain.ErrConfiguration)
	}
	if quoter == nil {
		return nil, fmt.Errorf("%w: identifier quoter is required", domain.ErrConfiguration)
	}
	if err := mapping.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		factory: factory,
		mapping: mapping,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.sql = newStatements(mapping.quote(quoter), s.newRoleID != nil)
	return s, nil
}

// NewFromDB creates a Store drawing connections from db and quoting
// identifiers for db's dialect.
func NewFromDB(db *gorm.DB, mapping Mapping, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("%w: database is required", domain.ErrConfiguration)
	}
	return New(sqlexec.Shared(db), mapping, db.Dialector, opts...)
}

// Mapping returns the identifiers the store was configured with.
func (s *Store) Mapping() Mapping {
	return s.mapping
}

// CheckSchema verifies that the three configured tables exist.
func (s *Store) CheckSchema(ctx context.Context) error {
	return s.withDatabase(ctx, func(db *sqlexec.Database) error {
		for _, table := range []string{s.mapping.UserTableName, s.mapping.RoleTableName, s.mapping.UsersInRoleTableName} {
			exists, err := db.TableExists(ctx, table)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: table %s does not exist", domain.ErrConfiguration, table)
			}
		}
		return nil
	})
}

func (s *Store) CreateRole(ctx context.Context, roleName string) error {
	if err := requireNames("roleName", roleName); err != nil {
		return err
	}

	return s.withUnitOfWork(ctx, func(db *sqlexec.Database) error {
		_, found, err := s.findRoleID(ctx, db, roleName)
		if err != nil {
			return err
		}
		if found {
			return fmt.Errorf("%w: role %s exists", domain.ErrAlreadyExists, roleName)
		}

		var rows int64
		if s.newRoleID != nil {
			rows, err = db.Execute(ctx, s.sql.insertRole, s.newRoleID(), roleName)
		} else {
			rows, err = db.Execute(ctx, s.sql.insertRole, roleName)
		}
		if err != nil {
			return fmt.Errorf("failed to insert role %s: %w", roleName, err)
		}
		if rows != 1 {
			return fmt.Errorf("%w: inserting role %s affected %d rows", domain.ErrStoreInconsistent, roleName, rows)
		}

		s.log.Debug("role created", zap.String("role", roleName))
		return nil
	})
}

func (s *Store) DeleteRole(ctx context.Context, roleName string, throwOnPopulatedRole bool) (bool, error) {
	if err := requireNames("roleName", roleName); err != nil {
		return false, err
	}

	var deleted bool
	err := s.withUnitOfWork(ctx, func(db *sqlexec.Database) error {
		roleID, found, err := s.findRoleID(ctx, db, roleName)
		if err != nil || !found {
			return err
		}

		if throwOnPopulatedRole {
			member, err := db.QuerySingle(ctx, s.sql.findMemberOfRole, roleID)
			if err != nil {
				return err
			}
			if member != nil {
				return fmt.Errorf("%w: role %s", domain.ErrRolePopulated, roleName)
			}
		} else {
			removed, err := db.Execute(ctx, s.sql.deleteMembersOfRole, roleID)
			if err != nil {
				return fmt.Errorf("failed to delete members of role %s: %w", roleName, err)
			}
			s.log.Debug("role members deleted", zap.String("role", roleName), zap.Int64("rows", removed))
		}

		rows, err := db.Execute(ctx, s.sql.deleteRole, roleID)
		if err != nil {
			return fmt.Errorf("failed to delete role %s: %w", roleName, err)
		}
		deleted = rows == 1

		s.log.Debug("role deleted", zap.String("role", roleName), zap.Int64("rows", rows))
		return nil
	})
	return deleted, err
}

func (s *Store) RoleExists(ctx context.Context, roleName string) (bool, error) {
	if err := requireNames("roleName", roleName); err != nil {
		return false, err
	}

	var found bool
	err := s.withDatabase(ctx, func(db *sqlexec.Database) error {
		var err error
		_, found, err = s.findRoleID(ctx, db, roleName)
		return err
	})
	return found, err
}

func (s *Store) GetAllRoles(ctx context.Context) ([]string, error) {
	var roles []string
	err := s.withDatabase(ctx, func(db *sqlexec.Database) error {
		var err error
		roles, err = s.queryNames(ctx, db, s.sql.allRoles)
		return err
	})
	return roles, err
}

// AddUsersToRoles resolves every user and role before changing anything,
// then links each user to each role, users in the outer loop.
func (s *Store) AddUsersToRoles(ctx context.Context, usernames, roleNames []string) error {
	if err := requireNames("usernames", usernames...); err != nil {
		return err
	}
	if err := requireNames("roleNames", roleNames...); err != nil {
		return err
	}

	return s.withUnitOfWork(ctx, func(db *sqlexec.Database) error {
		userIDs, err := s.userIDs(ctx, db, usernames)
		if err != nil {
			return err
		}
		roleIDs, err := s.roleIDs(ctx, db, roleNames)
		if err != nil {
			return err
		}

		for u, username := range usernames {
			for r, roleName := range roleNames {
				inRole, err := s.isUserInRole(ctx, db, username, roleName)
				if err != nil {
					return err
				}
				if inRole {
					return fmt.Errorf("%w: user %s already in role %s", domain.ErrAlreadyInRole, username, roleName)
				}

				rows, err := db.Execute(ctx, s.sql.insertMembership, userIDs[u], roleIDs[r])
				if err != nil {
					return fmt.Errorf("failed to add user %s to role %s: %w", username, roleName, err)
				}
				if rows != 1 {
					return fmt.Errorf("%w: adding user %s to role %s affected %d rows", domain.ErrStoreInconsistent, username, roleName, rows)
				}
				s.log.Debug("user added to role", zap.String("user", username), zap.String("role", roleName))
			}
		}
		return nil
	})
}

// RemoveUsersFromRoles checks that every role exists and every user is in
// every role before deleting any membership.
func (s *Store) RemoveUsersFromRoles(ctx context.Context, usernames, roleNames []string) error {
	if err := requireNames("usernames", usernames...); err != nil {
		return err
	}
	if err := requireNames("roleNames", roleNames...); err != nil {
		return err
	}

	return s.withUnitOfWork(ctx, func(db *sqlexec.Database) error {
		for _, roleName := range roleNames {
			_, found, err := s.findRoleID(ctx, db, roleName)
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: %s", domain.ErrRoleNotFound, roleName)
			}
		}

		for _, username := range usernames {
			for _, roleName := range roleNames {
				inRole, err := s.isUserInRole(ctx, db, username, roleName)
				if err != nil {
					return err
				}
				if !inRole {
					return fmt.Errorf("%w: user %s not in role %s", domain.ErrNotInRole, username, roleName)
				}
			}
		}

		userIDs, err := s.userIDs(ctx, db, usernames)
		if err != nil {
			return err
		}
		roleIDs, err := s.roleIDs(ctx, db, roleNames)
		if err != nil {
			return err
		}

		for u, userID := range userIDs {
			for r, roleID := range roleIDs {
				rows, err := db.Execute(ctx, s.sql.deleteMembership, userID, roleID)
				if err != nil {
					return fmt.Errorf("failed to remove user %s from role %s: %w", usernames[u], roleNames[r], err)
				}
				if rows != 1 {
					return fmt.Errorf("%w: removing user %s from role %s affected %d rows", domain.ErrStoreInconsistent, usernames[u], roleNames[r], rows)
				}
				s.log.Debug("user removed from role", zap.String("user", usernames[u]), zap.String("role", roleNames[r]))
			}
		}
		return nil
	})
}

// IsUserInRole reports whether exactly one membership links the user to the
// role. Duplicated membership rows make it report false.
func (s *Store) IsUserInRole(ctx context.Context, username, roleName string) (bool, error) {
	if err := requireNames("username", username); err != nil {
		return false, err
	}
	if err := requireNames("roleName", roleName); err != nil {
		return false, err
	}

	var inRole bool
	err := s.withDatabase(ctx, func(db *sqlexec.Database) error {
		var err error
		inRole, err = s.isUserInRole(ctx, db, username, roleName)
		return err
	})
	return inRole, err
}

// GetRolesForUser returns the distinct role names of a user.
func (s *Store) GetRolesForUser(ctx context.Context, username string) ([]string, error) {
	if err := requireNames("username", username); err != nil {
		return nil, err
	}

	var roles []string
	err := s.withDatabase(ctx, func(db *sqlexec.Database) error {
		userIDs, err := s.userIDs(ctx, db, []string{username})
		if err != nil {
			return err
		}
		roles, err = s.queryNames(ctx, db, s.sql.rolesForUser, userIDs[0])
		return err
	})
	return roles, err
}

func (s *Store) GetUsersInRole(ctx context.Context, roleName string) ([]string, error) {
	if err := requireNames("roleName", roleName); err != nil {
		return nil, err
	}

	var users []string
	err := s.withDatabase(ctx, func(db *sqlexec.Database) error {
		var err error
		users, err = s.queryNames(ctx, db, s.sql.usersInRole, roleName)
		return err
	})
	return users, err
}

// FindUsersInRole returns the members of a role whose name matches
// usernameToMatch with LIKE semantics. Wildcards are passed through as given.
func (s *Store) FindUsersInRole(ctx context.Context, roleName, usernameToMatch string) ([]string, error) {
	if err := requireNames("roleName", roleName); err != nil {
		return nil, err
	}
	if err := requireNames("usernameToMatch", usernameToMatch); err != nil {
		return nil, err
	}

	var users []string
	err := s.withDatabase(ctx, func(db *sqlexec.Database) error {
		var err error
		users, err = s.queryNames(ctx, db, s.sql.findUsersInRole, roleName, usernameToMatch)
		return err
	})
	return users, err
}

// withDatabase runs fn on a connection that is released when fn returns.
func (s *Store) withDatabase(ctx context.Context, fn func(db *sqlexec.Database) error) error {
	db := sqlexec.New(s.factory)
	defer func() {
		if err := db.Close(); err != nil {
			s.log.Warn("failed to release connection", zap.Error(err))
		}
	}()
	return fn(db)
}

// withUnitOfWork is withDatabase for operations that may issue several
// mutating statements.
func (s *Store) withUnitOfWork(ctx context.Context, fn func(db *sqlexec.Database) error) error {
	return s.withDatabase(ctx, func(db *sqlexec.Database) error {
		if !s.scopedTransactions {
			return fn(db)
		}
		return db.Transaction(ctx, func() error {
			return fn(db)
		})
	})
}

func (s *Store) findRoleID(ctx context.Context, db *sqlexec.Database, roleName string) (any, bool, error) {
	record, err := db.QuerySingle(ctx, s.sql.findRoleID, roleName)
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up role %s: %w", roleName, err)
	}
	if record == nil {
		return nil, false, nil
	}
	return record.At(0), true, nil
}

func (s *Store) userIDs(ctx context.Context, db *sqlexec.Database, usernames []string) ([]any, error) {
	ids := make([]any, 0, len(usernames))
	for _, username := range usernames {
		record, err := db.QuerySingle(ctx, s.sql.findUserID, username)
		if err != nil {
			return nil, fmt.Errorf("failed to look up user %s: %w", username, err)
		}
		if record == nil {
			return nil, fmt.Errorf("%w: %s", domain.ErrUserNotFound, username)
		}
		ids = append(ids, record.At(0))
	}
	return ids, nil
}

func (s *Store) roleIDs(ctx context.Context, db *sqlexec.Database, roleNames []string) ([]any, error) {
	ids := make([]any, 0, len(roleNames))
	for _, roleName := range roleNames {
		id, found, err := s.findRoleID(ctx, db, roleName)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("%w: %s", domain.ErrRoleNotFound, roleName)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *Store) isUserInRole(ctx context.Context, db *sqlexec.Database, username, roleName string) (bool, error) {
	record, err := db.QuerySingle(ctx, s.sql.countMembership, username, roleName)
	if err != nil {
		return false, fmt.Errorf("failed to count memberships of user %s in role %s: %w", username, roleName, err)
	}
	if record == nil {
		return false, nil
	}
	count, err := toCount(record.At(0))
	if err != nil {
		return false, err
	}
	return count == 1, nil
}

// queryNames returns the first column of every row as a string.
func (s *Store) queryNames(ctx context.Context, db *sqlexec.Database, commandText string, args ...any) ([]string, error) {
	records, err := db.Query(ctx, commandText, args...)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(records))
	for _, record := range records {
		name, err := cast.ToStringE(record.At(0))
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func toCount(v any) (int64, error) {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	return cast.ToInt64E(v)
}

func requireNames(argument string, names ...string) error {
	if len(names) == 0 {
		return fmt.Errorf("%w: %s cannot be empty", domain.ErrInvalidInput, argument)
	}
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%w: %s cannot contain an empty name", domain.ErrInvalidInput, argument)
		}
	}
	return nil
}
