package driven

// PermissionRepository defines the interface for role permission persistence.
type PermissionRepository interface {
	AddPolicy(role, object, action string) (bool, error)
	RemovePolicy(role, object, action string) (bool, error)
	RemovePoliciesForRole(role string) (bool, error)
	GetPolicy() ([][]string, error)
	Allows(role, object, action string) (bool, error)
}
