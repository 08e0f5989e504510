package city

import "errors"

var ErrCityNotFound = errors.New("city not found")

// City is a delivery destination. Main cities get shortened standard
// delivery lead time. Unknown city names are created lazily by the order
// builder, never flagged as main.
type City struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	IsMain bool   `json:"isMain"`
}
