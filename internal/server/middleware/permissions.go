package middleware

import (
	"github.com/cognify-labs/cognify/backend/pkg/common"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

func IsAdmin(user *AppUser) bool {
	if user == nil {
		return false
	}
	return user.Role == RoleAdmin
}

// CanAccessGraph reports whether user may read g: owners and admins can.
func CanAccessGraph(user *AppUser, g *common.Graph) bool {
	if user == nil || g == nil {
		return false
	}
	return IsAdmin(user) || g.UserID == user.UserID
}
