package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                "/",
		"/metrics":                        "/metrics",
		"/v1/roles":                       "/v1/roles",
		"/v1/roles/12":                    "/v1/roles/:id",
		"/v1/roles/12/members":            "/v1/roles/:id/members",
		"/v1/roles/12/permissions":        "/v1/roles/:id/permissions",
		"/v1/users/7/roles":               "/v1/users/:id/roles",
		"/v1/users/7/roles/3":             "/v1/users/:id/roles/:role_id",
		"/v1/auth/login":                  "/v1/auth/login",
		"/v1/admin/refresh-claims?dry=1":  "/v1/admin/refresh-claims",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
