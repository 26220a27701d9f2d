package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"egxo.tech/iam/internal/auth"
)

type assignRoleRequest struct {
	RoleID int64 `json:"role_id"`
}

func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	parts := strings.Split(path, "/")
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "user id must be an integer")
		return
	}
	if len(parts) < 2 || parts[1] != "roles" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch {
	case len(parts) == 2:
		a.handleUserRoles(w, r, userID)
	case len(parts) == 3:
		roleID, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, "role id must be an integer")
			return
		}
		a.handleUserRole(w, r, userID, roleID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleUserRoles(w http.ResponseWriter, r *http.Request, userID int64) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermissions(w, r, auth.PermUsersRead) {
			return
		}
		links, err := a.assignments.UserRoles(r.Context(), userID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": links,
		})
	case http.MethodPost:
		if !a.ensurePermissions(w, r, auth.PermRolesAssign) {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if req.RoleID == 0 {
			writeError(w, r, http.StatusBadRequest, "role_id is required")
			return
		}
		link, err := a.assignments.Assign(r.Context(), userID, req.RoleID)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		a.auditEvent(r, "roles.assign", map[string]any{
			"user_id": userID,
			"role_id": req.RoleID,
		})
		writeJSON(w, http.StatusCreated, link)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleUserRole(w http.ResponseWriter, r *http.Request, userID, roleID int64) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermRolesAssign) {
		return
	}
	if err := a.assignments.Remove(r.Context(), userID, roleID); err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "roles.remove", map[string]any{
		"user_id": userID,
		"role_id": roleID,
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleRefreshClaims rebuilds every user's claims cache. This is the
// repair path after a role's permission set changes, since role edits do
// not cascade to holders.
func (a *API) handleRefreshClaims(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !a.ensurePermissions(w, r, auth.PermSystemAdmin) {
		return
	}
	count, err := a.assignments.RefreshAll(r.Context())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	a.auditEvent(r, "claims.refresh_all", map[string]any{
		"users": count,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"refreshed": count,
	})
}
