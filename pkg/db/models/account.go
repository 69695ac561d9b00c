package models

import (
	"time"

	"github.com/angelmondragon/ecobuy/internal/commerce"
)

// Account is a shopper account held by the account service. Cart, wishlist
// and orders are stored as JSON documents on the row.
type Account struct {
	ID                    string                  `gorm:"column:id;type:varchar(36);primaryKey"`
	Email                 string                  `gorm:"column:email;not null;uniqueIndex:idx_accounts_email"`
	PasswordHash          *string                 `gorm:"column:password_hash"`
	FirstName             string                  `gorm:"column:first_name;not null;default:''"`
	LastName              string                  `gorm:"column:last_name;not null;default:''"`
	Phone                 string                  `gorm:"column:phone;not null;default:''"`
	AvatarURL             string                  `gorm:"column:avatar_url;not null;default:''"`
	GoogleID              *string                 `gorm:"column:google_id;uniqueIndex:idx_accounts_google_id"`
	Verified              bool                    `gorm:"column:verified;not null;default:false"`
	VerificationCodeHash  *string                 `gorm:"column:verification_code_hash"`
	VerificationExpiresAt *time.Time              `gorm:"column:verification_expires_at"`
	ResetCodeHash         *string                 `gorm:"column:reset_code_hash"`
	ResetExpiresAt        *time.Time              `gorm:"column:reset_expires_at"`
	Cart                  []commerce.CartItem     `gorm:"column:cart;type:text;serializer:json;not null"`
	Wishlist              []commerce.WishlistItem `gorm:"column:wishlist;type:text;serializer:json;not null"`
	Orders                []commerce.Order        `gorm:"column:orders;type:text;serializer:json;not null"`
	CreatedAt             time.Time               `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time               `gorm:"column:updated_at;autoUpdateTime"`
}

func (Account) TableName() string {
	return "accounts"
}

// ToUser projects the row into the shopper record returned to clients.
func (a Account) ToUser() commerce.User {
	return commerce.User{
		ID:        a.ID,
		Email:     a.Email,
		Name:      commerce.DisplayName(a.FirstName, a.LastName),
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Phone:     a.Phone,
		AvatarURL: a.AvatarURL,
		Cart:      a.Cart,
		Wishlist:  a.Wishlist,
		Orders:    a.Orders,
		Verified:  a.Verified,
	}.Clone()
}
