package cart

import "errors"

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Line is a single cart entry handed to the order builder.
type Line struct {
	VariantID int64 `json:"variantId"`
	Quantity  int   `json:"quantity"`
}

// ShippingAddress is an explicit destination supplied with the cart. When
// absent for standard delivery, the builder falls back to the user profile.
type ShippingAddress struct {
	Address  string `json:"address"`
	CityName string `json:"cityName"`
}
