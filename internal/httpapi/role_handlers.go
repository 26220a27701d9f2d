package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"egxo.tech/iam/internal/audit"
	"egxo.tech/iam/internal/auth"
)

type createRoleRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
	Order       int      `json:"order"`
}

type updateRoleRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Permissions []string `json:"permissions"`
	Order       *int     `json:"order"`
}

func (a *API) handleRolesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermRolesRead) {
			return
		}
		roles, err := a.roles.FindAll(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": roles,
		})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, auth.PermRolesCreate) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.roles.Create(r.Context(), auth.CreateRoleInput{
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
			Order:       req.Order,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "roles.create", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%d", role.ID))
		writeJSON(w, http.StatusCreated, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/roles/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	roleID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "role id must be an integer")
		return
	}

	switch {
	case len(parts) == 1:
		a.handleRole(w, r, roleID)
	case len(parts) == 2 && parts[1] == "members":
		a.handleRoleMembers(w, r, roleID)
	case len(parts) == 2 && parts[1] == "permissions":
		a.handleRolePermissions(w, r, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleRole(w http.ResponseWriter, r *http.Request, roleID int64) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermRolesRead) {
			return
		}
		role, err := a.roles.FindByID(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch, http.MethodPut:
		if !a.ensurePermissions(w, r, auth.PermRolesUpdate) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.roles.Update(r.Context(), roleID, auth.UpdateRoleInput{
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
			Order:       req.Order,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "roles.update", map[string]any{
			"role_id": role.ID,
		})
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if !a.ensurePermissions(w, r, auth.PermRolesDelete) {
			return
		}
		role, err := a.roles.Delete(r.Context(), roleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "roles.delete", map[string]any{
			"role_id": role.ID,
			"name":    role.Name,
		})
		writeJSON(w, http.StatusOK, role)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) handleRoleMembers(w http.ResponseWriter, r *http.Request, roleID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermRolesRead, auth.PermUsersRead) {
		return
	}
	members, err := a.roles.Members(r.Context(), roleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": members,
	})
}

func (a *API) handleRolePermissions(w http.ResponseWriter, r *http.Request, roleID int64) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermRolesRead) {
		return
	}
	perms, err := a.roles.Permissions(r.Context(), roleID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": perms,
	})
}

// handlePermissionCatalog lists every grantable permission code.
func (a *API) handlePermissionCatalog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermRolesRead) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": a.catalog.All(),
	})
}

func (a *API) auditEvent(r *http.Request, event string, fields map[string]any) {
	if principal, ok := auth.PrincipalFromContext(r.Context()); ok {
		fields["actor_id"] = principal.UserID
	}
	_ = audit.LogEvent(r.Context(), event, fields)
}
