// README: Common identity, role, and geo value types used across modules.
package types

// ID identifies a user, order, or other aggregate. IDs are opaque strings
// issued either by the identity provider (users) or by this service (orders).
type ID string

// Role is the closed set of caller roles supplied by the identity provider.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

func ParseRole(v string) (Role, bool) {
	switch Role(v) {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return Role(v), true
	}
	return "", false
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}
