package rbac

// Role constants
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Permission constants
const (
	PermManageCampaigns  = "manage_campaigns"
	PermViewCampaigns    = "view_campaigns"
	PermSendTest         = "send_test_notification"
	PermManageOwnDevices = "manage_own_devices"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	RoleAdmin: {
		PermManageCampaigns, PermViewCampaigns, PermSendTest, PermManageOwnDevices,
	},
	RoleUser: {
		PermManageOwnDevices,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}
