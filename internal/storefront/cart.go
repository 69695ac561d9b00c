package storefront

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/internal/remote"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
)

const orderIDAttempts = 5

// AddToCart merges the item into the cart. Signed-out calls are ignored.
func (s *Store) AddToCart(ctx context.Context, in commerce.CartItemInput) (Outcome, error) {
	if err := in.Validate(); err != nil {
		return s.fail(opAddToCart, err)
	}
	return s.mutate(ctx, opAddToCart, func(u commerce.User) (commerce.User, bool, string, error) {
		u.Cart = commerce.AddToCart(u.Cart, in)
		return u, true, fmt.Sprintf(msgAddedToCart, in.Name), nil
	}, replaceCart)
}

func (s *Store) RemoveFromCart(ctx context.Context, id string) (Outcome, error) {
	return s.mutate(ctx, opRemoveFromCart, func(u commerce.User) (commerce.User, bool, string, error) {
		name := cartItemName(u.Cart, id)
		cart, found := commerce.RemoveFromCart(u.Cart, id)
		if !found {
			return u, false, "", nil
		}
		u.Cart = cart
		return u, true, fmt.Sprintf(msgRemovedFromCart, name), nil
	}, replaceCart)
}

// UpdateCartItemQuantity sets the quantity for id. Quantities below one and
// unknown ids are ignored.
func (s *Store) UpdateCartItemQuantity(ctx context.Context, id string, qty int) (Outcome, error) {
	return s.mutate(ctx, opUpdateQuantity, func(u commerce.User) (commerce.User, bool, string, error) {
		cart, changed := commerce.SetCartQuantity(u.Cart, id, qty)
		if !changed {
			return u, false, "", nil
		}
		u.Cart = cart
		return u, true, msgCartUpdated, nil
	}, replaceCart)
}

func (s *Store) ClearCart(ctx context.Context) (Outcome, error) {
	return s.mutate(ctx, opClearCart, func(u commerce.User) (commerce.User, bool, string, error) {
		if len(u.Cart) == 0 {
			return u, false, "", nil
		}
		u.Cart = []commerce.CartItem{}
		return u, true, msgCartCleared, nil
	}, replaceCart)
}

// AddToWishlist appends the item unless its id is already saved.
func (s *Store) AddToWishlist(ctx context.Context, in commerce.WishlistItemInput) (Outcome, error) {
	if err := in.Validate(); err != nil {
		return s.fail(opAddToWishlist, err)
	}
	return s.mutate(ctx, opAddToWishlist, func(u commerce.User) (commerce.User, bool, string, error) {
		list, added := commerce.AddToWishlist(u.Wishlist, in)
		if !added {
			return u, false, fmt.Sprintf(msgInWishlist, in.Name), nil
		}
		u.Wishlist = list
		return u, true, fmt.Sprintf(msgAddedToWishlist, in.Name), nil
	}, replaceWishlist)
}

func (s *Store) RemoveFromWishlist(ctx context.Context, id string) (Outcome, error) {
	return s.mutate(ctx, opRemoveWishlist, func(u commerce.User) (commerce.User, bool, string, error) {
		name := wishlistItemName(u.Wishlist, id)
		list, found := commerce.RemoveFromWishlist(u.Wishlist, id)
		if !found {
			return u, false, "", nil
		}
		u.Wishlist = list
		return u, true, fmt.Sprintf(msgRemovedFromWish, name), nil
	}, replaceWishlist)
}

func (s *Store) ClearWishlist(ctx context.Context) (Outcome, error) {
	return s.mutate(ctx, opClearWishlist, func(u commerce.User) (commerce.User, bool, string, error) {
		if len(u.Wishlist) == 0 {
			return u, false, "", nil
		}
		u.Wishlist = []commerce.WishlistItem{}
		return u, true, msgWishlistCleared, nil
	}, replaceWishlist)
}

// CreateOrder checks the cart out into a processing order and empties it.
// An empty cart places nothing and returns no order.
func (s *Store) CreateOrder(ctx context.Context) (Outcome, error) {
	var placed commerce.Order
	out, err := s.mutate(ctx, opCreateOrder, func(u commerce.User) (commerce.User, bool, string, error) {
		if len(u.Cart) == 0 {
			return u, false, "", nil
		}
		id, err := uniqueOrderID(u.Orders)
		if err != nil {
			return u, false, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order id")
		}
		order, err := commerce.NewOrder(u.Cart, s.clock(), id)
		if errors.Is(err, commerce.ErrEmptyCart) {
			return u, false, "", nil
		}
		if err != nil {
			return u, false, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		placed = order
		u.Orders = append(u.Orders, order)
		u.Cart = []commerce.CartItem{}
		return u, true, fmt.Sprintf(msgOrderPlaced, order.ID), nil
	}, func(commerce.User) syncFunc {
		order := placed.Clone()
		return func(ctx context.Context, accounts remote.Accounts, token string) error {
			_, err := accounts.PlaceOrder(ctx, token, order)
			return err
		}
	})
	if err != nil || !out.Changed {
		return out, err
	}
	order := placed.Clone()
	out.Order = &order
	return out, nil
}

func uniqueOrderID(existing []commerce.Order) (string, error) {
	taken := make(map[string]struct{}, len(existing))
	for _, order := range existing {
		taken[order.ID] = struct{}{}
	}
	for i := 0; i < orderIDAttempts; i++ {
		id, err := commerce.NewOrderID()
		if err != nil {
			return "", err
		}
		if _, dup := taken[id]; !dup {
			return id, nil
		}
	}
	return "", fmt.Errorf("no free order id after %d attempts", orderIDAttempts)
}

func replaceCart(next commerce.User) syncFunc {
	items := append([]commerce.CartItem{}, next.Cart...)
	return func(ctx context.Context, accounts remote.Accounts, token string) error {
		_, err := accounts.ReplaceCart(ctx, token, items)
		return err
	}
}

func replaceWishlist(next commerce.User) syncFunc {
	items := append([]commerce.WishlistItem{}, next.Wishlist...)
	return func(ctx context.Context, accounts remote.Accounts, token string) error {
		_, err := accounts.ReplaceWishlist(ctx, token, items)
		return err
	}
}

func cartItemName(cart []commerce.CartItem, id string) string {
	for _, item := range cart {
		if item.ID == id {
			return item.Name
		}
	}
	return ""
}

func wishlistItemName(list []commerce.WishlistItem, id string) string {
	for _, item := range list {
		if item.ID == id {
			return item.Name
		}
	}
	return ""
}
