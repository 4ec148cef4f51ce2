package access

import (
	"strings"

	"readconfirm/internal/ports"
)

var roleRank = map[string]int{
	ports.RoleSubscriber:    1,
	ports.RoleAuthor:        2,
	ports.RoleEditor:        3,
	ports.RoleAdministrator: 4,
}

// RolePolicy mirrors the host's default capabilities: published items are readable
// by everyone, private and draft items by their author and by editors; editors edit
// everything, authors their own items; only administrators manage settings.
type RolePolicy struct{}

var _ ports.AccessPolicy = RolePolicy{}

func NewRolePolicy() RolePolicy {
	return RolePolicy{}
}

func (RolePolicy) CanRead(viewer ports.Viewer, item ports.ContentItem) bool {
	if strings.EqualFold(item.Status, ports.StatusPublish) {
		return true
	}
	if !viewer.Authenticated() {
		return false
	}
	return viewer.UserID == item.AuthorID || rank(viewer.Role) >= roleRank[ports.RoleEditor]
}

func (RolePolicy) CanEdit(viewer ports.Viewer, item ports.ContentItem) bool {
	if !viewer.Authenticated() {
		return false
	}
	r := rank(viewer.Role)
	if r >= roleRank[ports.RoleEditor] {
		return true
	}
	return r == roleRank[ports.RoleAuthor] && viewer.UserID == item.AuthorID
}

func (RolePolicy) CanManageSettings(viewer ports.Viewer) bool {
	return viewer.Authenticated() && rank(viewer.Role) >= roleRank[ports.RoleAdministrator]
}

func rank(role string) int {
	return roleRank[strings.ToLower(strings.TrimSpace(role))]
}
