package domain

// Role gates which actions a user may take.
type Role string

const (
	RoleUser    Role = "USER"
	RoleCreator Role = "CREATOR"
)

// User is the authenticated account as returned by /api/users/me/.
type User struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Role   Role   `json:"role"`
}

// IsCreator reports whether u may publish sessions.
func (u *User) IsCreator() bool {
	return u != nil && u.Role == RoleCreator
}

// CanBook reports whether user may book session. Nobody books their own
// session; everyone else, creators included, may book.
func CanBook(user *User, session *Session) bool {
	if user == nil || session == nil {
		return false
	}
	return session.Creator != user.ID
}
