package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"egxo.tech/iam/internal/auth"
	"egxo.tech/iam/internal/httpapi"
	"egxo.tech/iam/internal/store/mem"
)

type testAPI struct {
	handler http.Handler
	store   *mem.Store
	catalog *auth.Catalog
}

func newTestAPI(t *testing.T, opts ...httpapi.Option) *testAPI {
	t.Helper()
	store := mem.New()
	catalog := auth.DefaultCatalog()
	tokens, err := auth.NewTokenIssuer("test-secret")
	if err != nil {
		t.Fatalf("token issuer: %v", err)
	}
	sessions := auth.NewSessionService(store)
	svc := auth.NewService(store, auth.NewBcryptHasher(), tokens, sessions, catalog)
	roles := auth.NewRoleService(store, catalog)
	assignments := auth.NewAssignmentService(store)

	if err := auth.NewBootstrap(store, catalog, nil).EnsureSystemRoles(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{}, "test", svc, roles, assignments, catalog, opts...)
	return &testAPI{
		handler: httpapi.RequestID(api.Handler()),
		store:   store,
		catalog: catalog,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

// registerAndLogin creates a user, optionally grants extra permissions via
// a custom role, and returns a live access token.
func (a *testAPI) registerAndLogin(t *testing.T, email string, extraPerms ...string) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email":    email,
		"password": "s3cret-pass",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register: %d %s", rr.Code, rr.Body.String())
	}
	userID := int64(decodeBody(t, rr)["id"].(float64))

	if len(extraPerms) > 0 {
		role := &auth.Role{
			UUID:        fmt.Sprintf("uuid-%s", email),
			Name:        "Extra for " + email,
			Permissions: extraPerms,
			Type:        auth.RoleTypeCustom,
		}
		if err := a.store.CreateRole(context.Background(), role); err != nil {
			t.Fatalf("create role: %v", err)
		}
		if _, err := a.store.AssignRole(context.Background(), userID, role.ID); err != nil {
			t.Fatalf("assign role: %v", err)
		}
	}

	rr = a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": "s3cret-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("login: %d %s", rr.Code, rr.Body.String())
	}
	return decodeBody(t, rr)["access_token"].(string)
}

func TestRegisterLoginAndMe(t *testing.T) {
	a := newTestAPI(t)
	token := a.registerAndLogin(t, "flow@example.com")

	rr := a.do(t, http.MethodGet, "/v1/auth/me", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["email"] != "flow@example.com" {
		t.Fatalf("unexpected identity: %v", body)
	}
	claims, ok := body["claims"].([]any)
	if !ok || len(claims) == 0 {
		t.Fatalf("expected embedded claims, got %v", body["claims"])
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	a := newTestAPI(t)
	a.registerAndLogin(t, "secure@example.com")

	missing := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "ghost@example.com", "password": "whatever",
	})
	wrong := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "secure@example.com", "password": "wrong",
	})

	if missing.Code != http.StatusUnauthorized || wrong.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401/401, got %d/%d", missing.Code, wrong.Code)
	}
	if decodeBody(t, missing)["error"] != decodeBody(t, wrong)["error"] {
		t.Fatal("failure bodies must be indistinguishable")
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, http.MethodGet, "/v1/roles", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = a.do(t, http.MethodGet, "/v1/roles", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestForbiddenNamesMissingPermission(t *testing.T) {
	a := newTestAPI(t)
	// basic defaults do not include roles.read
	token := a.registerAndLogin(t, "basic@example.com")

	rr := a.do(t, http.MethodGet, "/v1/roles", token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d %s", rr.Code, rr.Body.String())
	}
	msg, _ := decodeBody(t, rr)["error"].(string)
	if !strings.Contains(msg, auth.PermRolesRead) {
		t.Fatalf("error should name the missing permission: %q", msg)
	}
	if strings.Contains(msg, "held") {
		t.Fatalf("production responses must not echo held claims: %q", msg)
	}
}

func TestForbiddenDiagnosticModeEchoesHeldClaims(t *testing.T) {
	a := newTestAPI(t, httpapi.WithDiagnosticErrors())
	token := a.registerAndLogin(t, "dev@example.com")

	rr := a.do(t, http.MethodGet, "/v1/roles", token, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	msg, _ := decodeBody(t, rr)["error"].(string)
	if !strings.Contains(msg, auth.PermPostsRead) {
		t.Fatalf("diagnostic error should list held claims: %q", msg)
	}
}

func TestRoleLifecycleOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	token := a.registerAndLogin(t, "roleadmin@example.com",
		auth.PermRolesCreate, auth.PermRolesRead, auth.PermRolesUpdate, auth.PermRolesDelete)

	// create
	rr := a.do(t, http.MethodPost, "/v1/roles", token, map[string]any{
		"name":        "Editor",
		"permissions": []string{auth.PermPostsCreate, auth.PermPostsUpdate},
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create role: %d %s", rr.Code, rr.Body.String())
	}
	created := decodeBody(t, rr)
	roleID := int64(created["id"].(float64))
	if created["type"] != "CUSTOM" {
		t.Fatalf("api-created roles must be CUSTOM: %v", created["type"])
	}
	if loc := rr.Header().Get("Location"); loc != fmt.Sprintf("/v1/roles/%d", roleID) {
		t.Fatalf("location = %q", loc)
	}

	// duplicate name
	rr = a.do(t, http.MethodPost, "/v1/roles", token, map[string]any{"name": "Editor"})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate create: %d", rr.Code)
	}

	// invalid permission code
	rr = a.do(t, http.MethodPost, "/v1/roles", token, map[string]any{
		"name": "Broken", "permissions": []string{"users.fly"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("invalid permission: %d", rr.Code)
	}

	// patch
	rr = a.do(t, http.MethodPatch, fmt.Sprintf("/v1/roles/%d", roleID), token, map[string]any{
		"description": "content editors",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("update role: %d %s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["description"] != "content editors" {
		t.Fatal("patch not applied")
	}

	// delete
	rr = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/roles/%d", roleID), token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete role: %d %s", rr.Code, rr.Body.String())
	}

	// gone
	rr = a.do(t, http.MethodGet, fmt.Sprintf("/v1/roles/%d", roleID), token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("deleted role should 404, got %d", rr.Code)
	}
}

func TestSystemRoleProtectionOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	token := a.registerAndLogin(t, "sysadmin@example.com",
		auth.PermRolesRead, auth.PermRolesUpdate, auth.PermRolesDelete)

	basic, err := a.store.FindRoleByType(context.Background(), auth.RoleTypeBasic)
	if err != nil {
		t.Fatalf("basic role: %v", err)
	}

	rr := a.do(t, http.MethodPatch, fmt.Sprintf("/v1/roles/%d", basic.ID), token, map[string]any{
		"name": "Hacked",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("system role update should 400, got %d", rr.Code)
	}
	rr = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/roles/%d", basic.ID), token, nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("system role delete should 400, got %d", rr.Code)
	}
}

func TestAssignmentEndpoints(t *testing.T) {
	a := newTestAPI(t)
	admin := a.registerAndLogin(t, "assigner@example.com",
		auth.PermRolesAssign, auth.PermUsersRead)

	// target user
	rr := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email": "target@example.com", "password": "s3cret-pass",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("register target: %d", rr.Code)
	}
	targetID := int64(decodeBody(t, rr)["id"].(float64))

	role := &auth.Role{UUID: "uuid-extra", Name: "Extra", Type: auth.RoleTypeCustom,
		Permissions: []string{auth.PermSystemLogs}}
	if err := a.store.CreateRole(context.Background(), role); err != nil {
		t.Fatalf("create role: %v", err)
	}

	// assign
	rr = a.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%d/roles", targetID), admin, map[string]any{
		"role_id": role.ID,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("assign: %d %s", rr.Code, rr.Body.String())
	}

	// duplicate assign conflicts
	rr = a.do(t, http.MethodPost, fmt.Sprintf("/v1/users/%d/roles", targetID), admin, map[string]any{
		"role_id": role.ID,
	})
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate assign: %d", rr.Code)
	}

	// list
	rr = a.do(t, http.MethodGet, fmt.Sprintf("/v1/users/%d/roles", targetID), admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list roles: %d", rr.Code)
	}
	items, _ := decodeBody(t, rr)["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected basic + extra, got %d links", len(items))
	}

	// remove
	rr = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d/roles/%d", targetID, role.ID), admin, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("remove: %d %s", rr.Code, rr.Body.String())
	}
	rr = a.do(t, http.MethodDelete, fmt.Sprintf("/v1/users/%d/roles/%d", targetID, role.ID), admin, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second remove: %d", rr.Code)
	}
}

func TestRefreshClaimsEndpoint(t *testing.T) {
	a := newTestAPI(t)
	admin := a.registerAndLogin(t, "maintainer@example.com", auth.PermSystemAdmin)

	rr := a.do(t, http.MethodPost, "/v1/admin/refresh-claims", admin, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh claims: %d %s", rr.Code, rr.Body.String())
	}
	if decodeBody(t, rr)["refreshed"].(float64) < 1 {
		t.Fatal("expected at least one refreshed user")
	}

	// without system.admin it is forbidden
	basicToken := a.registerAndLogin(t, "nobody@example.com")
	rr = a.do(t, http.MethodPost, "/v1/admin/refresh-claims", basicToken, nil)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestLogoutOverHTTP(t *testing.T) {
	a := newTestAPI(t)
	token := a.registerAndLogin(t, "leaver@example.com")

	rr := a.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout: %d %s", rr.Code, rr.Body.String())
	}
	// token still verifies; a second logout finds no session
	rr = a.do(t, http.MethodPost, "/v1/auth/logout", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("second logout: %d", rr.Code)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	a := newTestAPI(t)
	a.registerAndLogin(t, "renewer@example.com")

	rr := a.do(t, http.MethodPost, "/v1/auth/login", "", map[string]any{
		"email": "renewer@example.com", "password": "s3cret-pass",
	})
	refresh := decodeBody(t, rr)["refresh_token"].(string)

	rr = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": refresh,
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("refresh: %d %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["access_token"] == "" || body["refresh_token"] == "" {
		t.Fatal("expected a fresh token pair")
	}

	// an access token does not redeem
	access := body["access_token"].(string)
	rr = a.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]any{
		"refresh_token": access,
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("access-as-refresh: %d", rr.Code)
	}
}

func TestHealthAndCatalogEndpoints(t *testing.T) {
	a := newTestAPI(t)

	rr := a.do(t, http.MethodGet, "/healthz", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rr.Code)
	}

	token := a.registerAndLogin(t, "reader@example.com", auth.PermRolesRead)
	rr = a.do(t, http.MethodGet, "/v1/permissions", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("permissions: %d %s", rr.Code, rr.Body.String())
	}
	items, _ := decodeBody(t, rr)["items"].([]any)
	if len(items) != len(a.catalog.All()) {
		t.Fatalf("expected full catalog, got %d codes", len(items))
	}
}

func TestRegisterWithUnresolvableRoles(t *testing.T) {
	a := newTestAPI(t)
	rr := a.do(t, http.MethodPost, "/v1/auth/register", "", map[string]any{
		"email": "ghostroles@example.com", "password": "s3cret-pass",
		"roles": []string{"DoesNotExist"},
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", rr.Code, rr.Body.String())
	}
}
