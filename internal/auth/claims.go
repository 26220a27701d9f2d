package auth

// BuildClaims computes the claims cache value for a user from their current
// role links and direct grants. It is the single source of the stored
// cache: every recompute path funnels through it.
//
// The permission list is deduplicated in insertion order (role links in
// the order given, then direct grants), so repeated calls over the same
// inputs yield the same value.
func BuildClaims(links []UserRole, grants []UserPermission) ([]string, []RoleDescriptor) {
	seen := make(map[string]struct{})
	claims := make([]string, 0)
	descriptors := make([]RoleDescriptor, 0, len(links))

	for _, link := range links {
		if link.Role == nil || link.Role.DeletedAt != nil {
			continue
		}
		for _, code := range link.Role.Permissions {
			if _, ok := seen[code]; ok {
				continue
			}
			seen[code] = struct{}{}
			claims = append(claims, code)
		}
		descriptors = append(descriptors, RoleDescriptor{
			RoleID:   link.Role.ID,
			RoleName: link.Role.Name,
			RoleUUID: link.Role.UUID,
		})
	}

	for _, grant := range grants {
		if _, ok := seen[grant.PermissionCode]; ok {
			continue
		}
		seen[grant.PermissionCode] = struct{}{}
		claims = append(claims, grant.PermissionCode)
	}

	return claims, descriptors
}
