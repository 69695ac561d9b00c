package commerce

import (
	"strings"
	"time"

	"github.com/angelmondragon/ecobuy/pkg/enums"
)

// User is the shopper record: identity plus the commerce state it owns.
type User struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	Name      string         `json:"name"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Phone     string         `json:"phone,omitempty"`
	AvatarURL string         `json:"avatarUrl,omitempty"`
	Cart      []CartItem     `json:"cart"`
	Wishlist  []WishlistItem `json:"wishlist"`
	Orders    []Order        `json:"orders"`
	Verified  bool           `json:"verified"`
}

type CartItem struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Price    float64 `json:"price" validate:"gte=0"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity" validate:"gte=1"`
}

func (c CartItem) UnitPrice() float64 { return c.Price }
func (c CartItem) Units() int         { return c.Quantity }

type WishlistItem struct {
	ID      string  `json:"id" validate:"required"`
	Name    string  `json:"name"`
	Price   float64 `json:"price" validate:"gte=0"`
	Image   string  `json:"image"`
	InStock bool    `json:"inStock"`
}

type OrderItem struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity" validate:"gte=1"`
	Price    float64 `json:"price" validate:"gte=0"`
	Image    string  `json:"image"`
}

func (o OrderItem) UnitPrice() float64 { return o.Price }
func (o OrderItem) Units() int         { return o.Quantity }

// Order is an immutable snapshot of the cart taken at checkout.
type Order struct {
	ID     string            `json:"id"`
	Date   time.Time         `json:"date"`
	Status enums.OrderStatus `json:"status"`
	Total  float64           `json:"total"`
	Items  []OrderItem       `json:"items"`
}

// CartItemInput is what a view hands to addToCart. Quantity <= 0 means one.
type CartItemInput struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Price    float64 `json:"price" validate:"gte=0"`
	Image    string  `json:"image"`
	Quantity int     `json:"quantity"`
}

// WishlistItemInput leaves InStock nil when the caller does not know; nil
// is stored as in stock.
type WishlistItemInput struct {
	ID      string  `json:"id" validate:"required"`
	Name    string  `json:"name"`
	Price   float64 `json:"price" validate:"gte=0"`
	Image   string  `json:"image"`
	InStock *bool   `json:"inStock,omitempty"`
}

// ProfileUpdate carries the editable profile fields; nil leaves a field alone.
type ProfileUpdate struct {
	FirstName *string `json:"firstName,omitempty"`
	LastName  *string `json:"lastName,omitempty"`
	Phone     *string `json:"phone,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

// Empty reports whether the update would change nothing.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil && p.AvatarURL == nil
}

// NormalizeEmail trims and lower-cases an address for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DisplayName joins first and last name the way the storefront shows them.
func DisplayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

// SplitName breaks a display name on its first space.
func SplitName(name string) (first, last string) {
	name = strings.TrimSpace(name)
	first, last, _ = strings.Cut(name, " ")
	return first, strings.TrimSpace(last)
}

// Clone deep copies the user so callers never share slices with the owner.
func (u User) Clone() User {
	out := u
	out.Cart = append(make([]CartItem, 0, len(u.Cart)), u.Cart...)
	out.Wishlist = append(make([]WishlistItem, 0, len(u.Wishlist)), u.Wishlist...)
	out.Orders = make([]Order, 0, len(u.Orders))
	for _, order := range u.Orders {
		out.Orders = append(out.Orders, order.Clone())
	}
	return out
}

// Clone copies the order including its items.
func (o Order) Clone() Order {
	out := o
	out.Items = append(make([]OrderItem, 0, len(o.Items)), o.Items...)
	return out
}
