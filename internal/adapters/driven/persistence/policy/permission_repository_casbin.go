package policy

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"gorm.io/gorm"

	"generic-role-provider/internal/core/ports/driven"
)

// DefaultTableName is where role permissions are stored.
const DefaultTableName = "role_permissions"

// Objects match with keyMatch so "/reports/*" covers every report; an action
// of "*" covers every action.
const permissionModel = `[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && keyMatch(r.obj, p.obj) && (r.act == p.act || p.act == "*")`

// PermissionRepositoryImpl implements driven.PermissionRepository with a
// casbin enforcer persisted through the gorm adapter.
type PermissionRepositoryImpl struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
}

// NewPermissionRepository creates the policy table in db if needed and
// loads the stored permissions.
func NewPermissionRepository(db *gorm.DB, tableName string) (driven.PermissionRepository, error) {
	if tableName == "" {
		tableName = DefaultTableName
	}

	adapter, err := gormadapter.NewAdapterByDBUseTableName(db, "", tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission adapter: %w", err)
	}

	m, err := model.NewModelFromString(permissionModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create permission enforcer: %w", err)
	}
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	enforcer.EnableAutoSave(true)

	return &PermissionRepositoryImpl{enforcer: enforcer}, nil
}

func (r *PermissionRepositoryImpl) AddPolicy(role, object, action string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enforcer.AddPolicy(role, object, action)
}

func (r *PermissionRepositoryImpl) RemovePolicy(role, object, action string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enforcer.RemovePolicy(role, object, action)
}

func (r *PermissionRepositoryImpl) RemovePoliciesForRole(role string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enforcer.RemoveFilteredPolicy(0, role)
}

func (r *PermissionRepositoryImpl) GetPolicy() ([][]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enforcer.GetPolicy()
}

func (r *PermissionRepositoryImpl) Allows(role, object, action string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enforcer.Enforce(role, object, action)
}
