package ports

// Viewer is the current requester. The zero value is an anonymous visitor.
type Viewer struct {
	UserID      uint64
	Login       string
	DisplayName string
	Role        string
}

func (v Viewer) Authenticated() bool {
	return v.UserID > 0
}

func ViewerFromUser(u User) Viewer {
	return Viewer{
		UserID:      u.UserID,
		Login:       u.Login,
		DisplayName: u.DisplayName,
		Role:        u.Role,
	}
}

// AccessPolicy delegates permission questions to the host's access control.
type AccessPolicy interface {
	CanRead(viewer Viewer, item ContentItem) bool
	CanEdit(viewer Viewer, item ContentItem) bool
	CanManageSettings(viewer Viewer) bool
}
