package domain

// RoleRequest represents a role creation request
type RoleRequest struct {
	Role string `json:"role"`
}

// MembershipRequest adds or removes every user to or from every role.
type MembershipRequest struct {
	Users []string `json:"users"`
	Roles []string `json:"roles"`
}

// PermissionRequest grants or revokes an action on an object for a role.
type PermissionRequest struct {
	Role   string `json:"role"`
	Object string `json:"object"`
	Action string `json:"action"`
}

// EnforceRequest represents an authorization enforcement request
type EnforceRequest struct {
	User   string `json:"user"`
	Object string `json:"object"`
	Action string `json:"action"`
}

// EnforceResponse represents the response for an enforcement request
type EnforceResponse struct {
	Allowed bool   `json:"allowed"`
	Role    string `json:"role,omitempty"` // role that granted access
	Message string `json:"message,omitempty"`
}

// Permission is a single grant held by a role.
type Permission struct {
	Role   string `json:"role"`
	Object string `json:"object"`
	Action string `json:"action"`
}
