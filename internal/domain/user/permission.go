package user

// 权限点
// 前后端共用的权限键，格式为 资源:动作
const (
	PermProductView   = "product:view"
	PermProductAdd    = "product:add"
	PermProductEdit   = "product:edit"
	PermProductDelete = "product:delete"

	PermPurchaseView = "purchase:view"
	PermPurchaseAdd  = "purchase:add"

	PermSalesView   = "sales:view"
	PermSalesAdd    = "sales:add"
	PermSalesDelete = "sales:delete"

	PermReturnsView = "returns:view"
	PermReturnsAdd  = "returns:add"

	PermMemberView     = "member:view"
	PermMemberAdd      = "member:add"
	PermMemberEdit     = "member:edit"
	PermMemberRecharge = "member:recharge"

	PermStatsView   = "stats:view"
	PermStatsProfit = "stats:profit"
	PermStatsReport = "stats:report"

	PermStaffStatsView = "staff_stats:view"
	PermStaffStatsAll  = "staff_stats:all"

	PermDataBackup  = "data:backup"
	PermDataRestore = "data:restore"
	PermDataClear   = "data:clear"

	PermUserView   = "user:view"
	PermUserAdd    = "user:add"
	PermUserEdit   = "user:edit"
	PermUserDelete = "user:delete"
)

// 店长拿到除用户管理和清库外的全部权限，店员只保留收银台日常要用的
var rolePermissions = map[string][]string{
	RoleManager: {
		PermProductView, PermProductAdd, PermProductEdit, PermProductDelete,
		PermPurchaseView, PermPurchaseAdd,
		PermSalesView, PermSalesAdd, PermSalesDelete,
		PermReturnsView, PermReturnsAdd,
		PermMemberView, PermMemberAdd, PermMemberEdit, PermMemberRecharge,
		PermStatsView, PermStatsProfit, PermStatsReport,
		PermStaffStatsView, PermStaffStatsAll,
		PermDataBackup, PermDataRestore,
	},
	RoleStaff: {
		PermProductView,
		PermSalesView, PermSalesAdd,
		PermReturnsView,
		PermMemberView, PermMemberAdd, PermMemberRecharge,
		PermStatsView,
		PermStaffStatsView,
	},
}

// HasPermission 角色权限判定
// admin恒为true；未知角色恒为false
func HasPermission(role, permission string) bool {
	if role == RoleAdmin {
		return true
	}
	for _, p := range rolePermissions[role] {
		if p == permission {
			return true
		}
	}
	return false
}

// Permissions 角色的全部权限点，登录响应里回给前端
func Permissions(role string) []string {
	if role == RoleAdmin {
		perms := make([]string, 0)
		seen := make(map[string]bool)
		for _, list := range rolePermissions {
			for _, p := range list {
				if !seen[p] {
					seen[p] = true
					perms = append(perms, p)
				}
			}
		}
		// 管理员独有
		for _, p := range []string{PermDataClear, PermUserView, PermUserAdd, PermUserEdit, PermUserDelete} {
			if !seen[p] {
				perms = append(perms, p)
			}
		}
		return perms
	}
	return append([]string(nil), rolePermissions[role]...)
}
