package rbac

type Role string
type Action string

const (
	RoleGuest  Role = "guest"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
	RoleOwner  Role = "owner"
)

const (
	ActionRead            Action = "read"
	ActionPost            Action = "post"
	ActionUpload          Action = "upload"
	ActionCreateChannel   Action = "create_channel"
	ActionManageTasks     Action = "manage_tasks"
	ActionExport          Action = "export"
	ActionManageChannels  Action = "manage_channels"
	ActionInvite          Action = "invite"
	ActionManageMembers   Action = "manage_members"
	ActionManageWorkspace Action = "manage_workspace"
	ActionDeleteWorkspace Action = "delete_workspace"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleOwner:
		return true
	case RoleAdmin:
		return action != ActionDeleteWorkspace
	case RoleMember:
		switch action {
		case ActionRead, ActionPost, ActionUpload, ActionCreateChannel, ActionManageTasks, ActionExport:
			return true
		}
		return false
	case RoleGuest:
		return action == ActionRead || action == ActionPost || action == ActionUpload
	default:
		return false
	}
}

// Normalize maps unknown roles to guest, the least privileged role.
func Normalize(role string) Role {
	switch Role(role) {
	case RoleGuest, RoleMember, RoleAdmin, RoleOwner:
		return Role(role)
	default:
		return RoleGuest
	}
}

func Valid(role string) bool {
	switch Role(role) {
	case RoleGuest, RoleMember, RoleAdmin, RoleOwner:
		return true
	}
	return false
}

func Rank(role Role) int {
	switch role {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleGuest:
		return 1
	default:
		return 0
	}
}

// CanAssign reports whether actor may grant target to someone, or change
// the role of someone currently holding target. Only owners touch owners.
func CanAssign(actor, target Role) bool {
	if !Can(actor, ActionManageMembers) {
		return false
	}
	if target == RoleOwner {
		return actor == RoleOwner
	}
	return Rank(actor) >= Rank(target)
}
