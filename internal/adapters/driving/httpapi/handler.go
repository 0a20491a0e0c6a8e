// Package httpapi exposes the role provider over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"generic-role-provider/internal/core/domain"
	"generic-role-provider/internal/core/ports/driving"
)

// SchemaChecker reports whether the configured tables are reachable.
type SchemaChecker interface {
	CheckSchema(ctx context.Context) error
}

// Handler serves the role, membership and permission endpoints.
type Handler struct {
	roles       driving.RoleService
	permissions driving.PermissionEnforcer
	schema      SchemaChecker
	log         *zap.Logger

	anyOrigin bool
	origins   map[string]bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithAllowedOrigins restricts CORS to the listed origins. "*" allows any
// origin and an empty list allows none. Without this option any origin is
// allowed.
func WithAllowedOrigins(origins ...string) Option {
	return func(h *Handler) {
		h.anyOrigin = false
		h.origins = make(map[string]bool, len(origins))
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			switch origin {
			case "":
			case "*":
				h.anyOrigin = true
			default:
				h.origins[origin] = true
			}
		}
	}
}

// NewHandler creates a Handler. schema may be nil.
func NewHandler(roles driving.RoleService, permissions driving.PermissionEnforcer, schema SchemaChecker, log *zap.Logger, opts ...Option) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{roles: roles, permissions: permissions, schema: schema, log: log, anyOrigin: true}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the API routes under /api/v1.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", h.healthHandler).Methods("GET")

	// Role endpoints
	api.HandleFunc("/roles", h.createRoleHandler).Methods("POST")
	api.HandleFunc("/roles", h.getRolesHandler).Methods("GET")
	api.HandleFunc("/roles/{role}", h.getRoleHandler).Methods("GET")
	api.HandleFunc("/roles/{role}", h.deleteRoleHandler).Methods("DELETE")
	api.HandleFunc("/roles/{role}/users", h.getUsersInRoleHandler).Methods("GET")
	api.HandleFunc("/roles/{role}/permissions", h.revokeRolePermissionsHandler).Methods("DELETE")

	// Membership endpoints
	api.HandleFunc("/memberships", h.addMembershipsHandler).Methods("POST")
	api.HandleFunc("/memberships", h.removeMembershipsHandler).Methods("DELETE")
	api.HandleFunc("/users/{user}/roles", h.getUserRolesHandler).Methods("GET")
	api.HandleFunc("/users/{user}/roles/{role}", h.checkUserRoleHandler).Methods("GET")

	// Permission endpoints
	api.HandleFunc("/permissions", h.grantPermissionHandler).Methods("POST")
	api.HandleFunc("/permissions", h.getPermissionsHandler).Methods("GET")
	api.HandleFunc("/permissions", h.revokePermissionHandler).Methods("DELETE")
	api.HandleFunc("/authorizations", h.authorizationHandler).Methods("POST")

	// preflight requests are answered by corsMiddleware
	router.Methods(http.MethodOptions).HandlerFunc(func(http.ResponseWriter, *http.Request) {})

	router.Use(h.corsMiddleware)
	router.Use(h.loggingMiddleware)
	return router
}

func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "generic-role-provider",
	}
	if h.schema != nil {
		if err := h.schema.CheckSchema(r.Context()); err != nil {
			response["status"] = "unhealthy"
			response["error"] = err.Error()
			writeJSON(w, http.StatusServiceUnavailable, response)
			return
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (h *Handler) createRoleHandler(w http.ResponseWriter, r *http.Request) {
	var request domain.RoleRequest
	if !decode(w, r, &request) {
		return
	}

	if err := h.roles.CreateRole(r.Context(), request.Role); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"created": true,
		"role":    request.Role,
	})
}

func (h *Handler) getRolesHandler(w http.ResponseWriter, r *http.Request) {
	roles, err := h.roles.GetAllRoles(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roles": roles,
		"count": len(roles),
	})
}

func (h *Handler) getRoleHandler(w http.ResponseWriter, r *http.Request) {
	role := mux.Vars(r)["role"]

	exists, err := h.roles.RoleExists(r.Context(), role)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !exists {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]interface{}{
		"role":   role,
		"exists": exists,
	})
}

// deleteRoleHandler refuses to delete a role with members unless force=true.
func (h *Handler) deleteRoleHandler(w http.ResponseWriter, r *http.Request) {
	role := mux.Vars(r)["role"]
	force := r.URL.Query().Get("force") == "true"

	deleted, err := h.roles.DeleteRole(r.Context(), role, !force)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !deleted {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]interface{}{
		"deleted": deleted,
		"role":    role,
	})
}

// getUsersInRoleHandler lists the members of a role, filtered by the LIKE
// pattern in match when present.
func (h *Handler) getUsersInRoleHandler(w http.ResponseWriter, r *http.Request) {
	role := mux.Vars(r)["role"]
	match := r.URL.Query().Get("match")

	var (
		users []string
		err   error
	)
	if match != "" {
		users, err = h.roles.FindUsersInRole(r.Context(), role, match)
	} else {
		users, err = h.roles.GetUsersInRole(r.Context(), role)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role":  role,
		"users": users,
		"count": len(users),
	})
}

func (h *Handler) addMembershipsHandler(w http.ResponseWriter, r *http.Request) {
	var request domain.MembershipRequest
	if !decode(w, r, &request) {
		return
	}

	if err := h.roles.AddUsersToRoles(r.Context(), request.Users, request.Roles); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"added": true,
		"users": request.Users,
		"roles": request.Roles,
	})
}

func (h *Handler) removeMembershipsHandler(w http.ResponseWriter, r *http.Request) {
	var request domain.MembershipRequest
	if !decode(w, r, &request) {
		return
	}

	if err := h.roles.RemoveUsersFromRoles(r.Context(), request.Users, request.Roles); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": true,
		"users":   request.Users,
		"roles":   request.Roles,
	})
}

func (h *Handler) getUserRolesHandler(w http.ResponseWriter, r *http.Request) {
	user := mux.Vars(r)["user"]

	roles, err := h.roles.GetRolesForUser(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"roles": roles,
		"count": len(roles),
	})
}

func (h *Handler) checkUserRoleHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	user, role := vars["user"], vars["role"]

	inRole, err := h.roles.IsUserInRole(r.Context(), user, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":   user,
		"role":   role,
		"inRole": inRole,
	})
}

func (h *Handler) grantPermissionHandler(w http.ResponseWriter, r *http.Request) {
	var request domain.PermissionRequest
	if !decode(w, r, &request) {
		return
	}

	added, err := h.permissions.Grant(r.Context(), request.Role, request.Object, request.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	if !added {
		writeJSON(w, http.StatusConflict, map[string]interface{}{
			"added":      false,
			"message":    "Permission already granted",
			"permission": request,
		})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"added":      true,
		"permission": request,
	})
}

func (h *Handler) getPermissionsHandler(w http.ResponseWriter, r *http.Request) {
	permissions, err := h.permissions.GetPermissions()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"permissions": permissions,
		"count":       len(permissions),
	})
}

func (h *Handler) revokePermissionHandler(w http.ResponseWriter, r *http.Request) {
	var request domain.PermissionRequest
	if !decode(w, r, &request) {
		return
	}

	removed, err := h.permissions.Revoke(request.Role, request.Object, request.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if !removed {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]interface{}{
		"removed":    removed,
		"permission": request,
	})
}

func (h *Handler) revokeRolePermissionsHandler(w http.ResponseWriter, r *http.Request) {
	role := mux.Vars(r)["role"]

	removed, err := h.permissions.RevokeAll(role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"removed": removed,
		"role":    role,
	})
}

func (h *Handler) authorizationHandler(w http.ResponseWriter, r *http.Request) {
	var request domain.EnforceRequest
	if !decode(w, r, &request) {
		return
	}
	if request.User == "" || request.Object == "" || request.Action == "" {
		writeError(w, errors.New("user, object, and action are required"), http.StatusBadRequest)
		return
	}

	response, err := h.permissions.Enforce(r.Context(), request.User, request.Object, request.Action)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

// corsMiddleware adds CORS headers for allowed origins and answers
// preflight requests.
func (h *Handler) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := w.Header()
		if origin := h.allowedOrigin(r.Header.Get("Origin")); origin != "" {
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if !h.anyOrigin {
			header.Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// allowedOrigin returns the Access-Control-Allow-Origin value for origin,
// or "" when the origin is not allowed.
func (h *Handler) allowedOrigin(origin string) string {
	if h.anyOrigin {
		return "*"
	}
	if h.origins[origin] {
		return origin
	}
	return ""
}

func (h *Handler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.log.Info("request",
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
