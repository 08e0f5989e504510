package user

import "errors"

var ErrUserNotFound = errors.New("user not found")

// User is the profile view this engine reads: identity plus the fallback
// shipping address used when an order carries no explicit one.
type User struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	CityName string `json:"cityName,omitempty"`
}

// HasAddress reports whether the profile carries a usable shipping address.
func (u *User) HasAddress() bool {
	return u.Address != "" && u.CityName != ""
}
