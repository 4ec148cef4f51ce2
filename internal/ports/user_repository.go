package ports

import "context"

// Roles as the host platform names them, lowest to highest.
const (
	RoleSubscriber    = "subscriber"
	RoleAuthor        = "author"
	RoleEditor        = "editor"
	RoleAdministrator = "administrator"
)

type User struct {
	UserID      uint64
	Login       string
	DisplayName string
	Role        string
}

type UserRepository interface {
	GetUser(ctx context.Context, userID uint64) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
	SaveUser(ctx context.Context, user User) (User, error)
}
