package rbac

// Default policy. Admins and superadmins differ only in user-management
// reach (role changes to superadmin are checked in the handler).
var RolePermissions = map[string][]string{
	"student": {
		"exam:list",
		"exam:start",
		"attempt:submit",
	},
	"teacher": {
		"exam:list",
		"exam:create",
		"exam:delete",
		"question:create",
		"question:delete",
		"question:import",
		"attempt:view",
		"analytics:view",
		"assets:upload",
	},
	"admin": {
		"*",
	},
	"superadmin": {
		"*",
	},
}
