package commerce

import (
	"errors"
	"regexp"
	"time"

	"github.com/angelmondragon/ecobuy/pkg/enums"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/money"
	"github.com/angelmondragon/ecobuy/pkg/security"
	"github.com/go-playground/validator/v10"
)

const (
	orderIDPrefix = "ORD-"
	orderIDLength = 5
)

// ErrEmptyCart is returned by NewOrder when there is nothing to check out.
var ErrEmptyCart = errors.New("cart is empty")

var (
	orderIDPattern = regexp.MustCompile(`^ORD-[A-Z0-9]{5}$`)
	validate       = validator.New(validator.WithRequiredStructEnabled())
)

// Validate checks the item before it can enter a cart.
func (in CartItemInput) Validate() error {
	return validationError(validate.Struct(in), "invalid cart item")
}

// Validate checks the item before it can enter a wishlist.
func (in WishlistItemInput) Validate() error {
	return validationError(validate.Struct(in), "invalid wishlist item")
}

// Validate checks optional profile fields.
func (p ProfileUpdate) Validate() error {
	return validationError(validate.Struct(p), "invalid profile update")
}

// ValidateCartItems checks a full cart sent for replacement.
func ValidateCartItems(items []CartItem) error {
	for _, item := range items {
		if err := validationError(validate.Struct(item), "invalid cart item"); err != nil {
			return err
		}
	}
	return nil
}

func ValidateWishlistItems(items []WishlistItem) error {
	for _, item := range items {
		if err := validationError(validate.Struct(item), "invalid wishlist item"); err != nil {
			return err
		}
	}
	return nil
}

// ValidateOrder checks an order handed over at checkout.
func ValidateOrder(order Order) error {
	if !ValidOrderID(order.ID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order id").WithDetails(map[string]string{"id": order.ID})
	}
	if order.Status != "" && order.Status != enums.OrderStatusProcessing {
		return pkgerrors.New(pkgerrors.CodeValidation, "new orders must be processing")
	}
	if len(order.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no items")
	}
	for _, item := range order.Items {
		if err := validationError(validate.Struct(item), "invalid order item"); err != nil {
			return err
		}
	}
	return nil
}

// ValidEmail reports whether email is a syntactically valid address.
func ValidEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}

func validationError(err error, message string) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make(map[string]string, len(fieldErrs))
		for _, fe := range fieldErrs {
			details[fe.Field()] = fe.Tag()
		}
		return pkgerrors.New(pkgerrors.CodeValidation, message).WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, message)
}

// AddToCart merges input into cart: an existing id gains the requested
// quantity, anything else is appended. cart itself is not modified.
func AddToCart(cart []CartItem, in CartItemInput) []CartItem {
	qty := in.Quantity
	if qty <= 0 {
		qty = 1
	}
	out := append(make([]CartItem, 0, len(cart)+1), cart...)
	for i := range out {
		if out[i].ID == in.ID {
			out[i].Quantity += qty
			return out
		}
	}
	return append(out, CartItem{
		ID:       in.ID,
		Name:     in.Name,
		Price:    in.Price,
		Image:    in.Image,
		Quantity: qty,
	})
}

// RemoveFromCart drops the line for id. The bool is false when id was absent.
func RemoveFromCart(cart []CartItem, id string) ([]CartItem, bool) {
	out := make([]CartItem, 0, len(cart))
	found := false
	for _, item := range cart {
		if item.ID == id {
			found = true
			continue
		}
		out = append(out, item)
	}
	return out, found
}

// SetCartQuantity replaces the quantity for id. Quantities below one and
// unknown ids leave the cart untouched and report false.
func SetCartQuantity(cart []CartItem, id string, qty int) ([]CartItem, bool) {
	if qty < 1 {
		return cart, false
	}
	out := append(make([]CartItem, 0, len(cart)), cart...)
	for i := range out {
		if out[i].ID == id {
			if out[i].Quantity == qty {
				return cart, false
			}
			out[i].Quantity = qty
			return out, true
		}
	}
	return cart, false
}

// MergeCart folds duplicate ids together, summing quantities, preserving
// first-seen order.
func MergeCart(items []CartItem) []CartItem {
	out := make([]CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if i, ok := index[item.ID]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[item.ID] = len(out)
		out = append(out, item)
	}
	return out
}

// AddToWishlist appends the item unless its id is already present.
func AddToWishlist(list []WishlistItem, in WishlistItemInput) ([]WishlistItem, bool) {
	if ContainsWishlistItem(list, in.ID) {
		return list, false
	}
	inStock := true
	if in.InStock != nil {
		inStock = *in.InStock
	}
	out := append(make([]WishlistItem, 0, len(list)+1), list...)
	return append(out, WishlistItem{
		ID:      in.ID,
		Name:    in.Name,
		Price:   in.Price,
		Image:   in.Image,
		InStock: inStock,
	}), true
}

func ContainsWishlistItem(list []WishlistItem, id string) bool {
	for _, item := range list {
		if item.ID == id {
			return true
		}
	}
	return false
}

// RemoveFromWishlist drops id. The bool is false when id was absent.
func RemoveFromWishlist(list []WishlistItem, id string) ([]WishlistItem, bool) {
	out := make([]WishlistItem, 0, len(list))
	found := false
	for _, item := range list {
		if item.ID == id {
			found = true
			continue
		}
		out = append(out, item)
	}
	return out, found
}

// DedupeWishlist keeps the first entry for every id.
func DedupeWishlist(list []WishlistItem) []WishlistItem {
	out := make([]WishlistItem, 0, len(list))
	for _, item := range list {
		if ContainsWishlistItem(out, item.ID) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// NewOrder snapshots cart into a processing order. Later cart edits never
// reach the returned order.
func NewOrder(cart []CartItem, now time.Time, id string) (Order, error) {
	if len(cart) == 0 {
		return Order{}, ErrEmptyCart
	}
	items := make([]OrderItem, 0, len(cart))
	for _, item := range cart {
		items = append(items, OrderItem{
			ID:       item.ID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
			Image:    item.Image,
		})
	}
	return Order{
		ID:     id,
		Date:   now.UTC().Truncate(time.Millisecond),
		Status: enums.OrderStatusProcessing,
		Total:  money.Float(money.Total(cart)),
		Items:  items,
	}, nil
}

// OrderTotal recomputes an order total from its items.
func OrderTotal(items []OrderItem) float64 {
	return money.Float(money.Total(items))
}

// NewOrderID returns ORD- followed by five random upper-case alphanumerics.
func NewOrderID() (string, error) {
	suffix, err := security.RandomString(security.UpperAlphanumeric, orderIDLength)
	if err != nil {
		return "", err
	}
	return orderIDPrefix + suffix, nil
}

func ValidOrderID(id string) bool {
	return orderIDPattern.MatchString(id)
}

// ApplyProfile merges the update into user and recomputes the display name.
// Blank first or last names keep the previous value.
func ApplyProfile(user User, update ProfileUpdate) User {
	out := user.Clone()
	if update.FirstName != nil && *update.FirstName != "" {
		out.FirstName = *update.FirstName
	}
	if update.LastName != nil && *update.LastName != "" {
		out.LastName = *update.LastName
	}
	if update.Phone != nil {
		out.Phone = *update.Phone
	}
	if update.AvatarURL != nil {
		out.AvatarURL = *update.AvatarURL
	}
	out.Name = DisplayName(out.FirstName, out.LastName)
	return out
}

// CartTotal is the running total shown next to the cart.
func CartTotal(cart []CartItem) float64 {
	return money.Float(money.Total(cart))
}
