package models

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
)

// User is the identity the service consumes; it is produced by the JWT
// middleware, not managed here.
type User struct {
	ID              string `json:"id"`
	Username        string `json:"username"`
	Role            Role   `json:"role"`
	TransportAccess bool   `json:"transportAccess"`
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// DriverGroup is a named set of drivers usable as an assignment target.
// Membership is expanded lazily at read time, so editing a group changes
// visibility for every request assigned to it.
type DriverGroup struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	MemberUserIDs []string `json:"memberUserIds"`
}
