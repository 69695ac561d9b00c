package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/ecobuy/internal/commerce"
	"github.com/angelmondragon/ecobuy/internal/storefront"
	"github.com/angelmondragon/ecobuy/pkg/config"
	pkgerrors "github.com/angelmondragon/ecobuy/pkg/errors"
	"github.com/angelmondragon/ecobuy/pkg/logger"
)

const syncWait = 15 * time.Second

// storefront drives the session store from a terminal: one command per run,
// state carried between runs by the configured cache.
func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront", Output: os.Stderr})
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	cfg, err := config.LoadStorefront()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Output:      os.Stderr,
	})

	ctx := context.Background()
	store, closeStore, err := storefront.Open(ctx, cfg, logg, nil)
	if err != nil {
		logg.Error(ctx, "failed to open store", err)
		os.Exit(1)
	}

	out, err := run(ctx, store, command, args)
	if errors.Is(err, errUnknownCommand) {
		usage()
		closeStore()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, pkgerrors.PublicMessage(err))
		closeStore()
		os.Exit(1)
	}
	if out.Message != "" {
		fmt.Fprintln(os.Stderr, out.Message)
	}
	if out.Sync != nil {
		waitCtx, cancel := context.WithTimeout(ctx, syncWait)
		if err := out.Sync.Wait(waitCtx); err != nil {
			fmt.Fprintln(os.Stderr, "not saved to your account:", pkgerrors.PublicMessage(err))
		}
		cancel()
	}
	printSnapshot(store.Snapshot())
	closeStore()
}

var errUnknownCommand = errors.New("unknown command")

func run(ctx context.Context, store *storefront.Store, command string, args []string) (storefront.Outcome, error) {
	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	first := fs.String("first", "", "first name")
	last := fs.String("last", "", "last name")
	phone := fs.String("phone", "", "phone number")
	avatar := fs.String("avatar", "", "avatar url")
	code := fs.String("code", "", "emailed verification or reset code")
	token := fs.String("token", "", "Google ID token")
	id := fs.String("id", "", "product id")
	name := fs.String("name", "", "product name")
	price := fs.Float64("price", 0, "unit price")
	qty := fs.Int("qty", 1, "quantity")
	if err := fs.Parse(args); err != nil {
		return storefront.Outcome{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, err.Error())
	}

	switch command {
	case "status":
		return storefront.Outcome{}, nil
	case "login":
		return store.Login(ctx, *email, *password)
	case "google":
		return store.GoogleLogin(ctx, *token)
	case "register":
		return store.Register(ctx, storefront.RegisterInput{Email: *email, Password: *password, FirstName: *first, LastName: *last, Phone: *phone})
	case "verify":
		return store.VerifyEmail(ctx, *email, *code)
	case "resend":
		return store.ResendVerification(ctx, *email)
	case "forgot":
		return store.ForgotPassword(ctx, *email)
	case "reset":
		return store.ResetPassword(ctx, storefront.ResetPasswordInput{Email: *email, Code: *code, Password: *password})
	case "logout":
		return store.Logout(ctx)
	case "refresh":
		return store.Refresh(ctx)
	case "profile":
		return store.UpdateProfile(ctx, profileUpdate(fs, first, last, phone, avatar))
	case "add":
		return store.AddToCart(ctx, commerce.CartItemInput{ID: *id, Name: *name, Price: *price, Quantity: *qty})
	case "remove":
		return store.RemoveFromCart(ctx, *id)
	case "quantity":
		return store.UpdateCartItemQuantity(ctx, *id, *qty)
	case "clear-cart":
		return store.ClearCart(ctx)
	case "wish":
		return store.AddToWishlist(ctx, commerce.WishlistItemInput{ID: *id, Name: *name, Price: *price})
	case "unwish":
		return store.RemoveFromWishlist(ctx, *id)
	case "clear-wishlist":
		return store.ClearWishlist(ctx)
	case "checkout":
		return store.CreateOrder(ctx)
	default:
		return storefront.Outcome{}, errUnknownCommand
	}
}

// profileUpdate sends only the flags given on the command line, so an
// omitted flag leaves that field as it is.
func profileUpdate(fs *flag.FlagSet, first, last, phone, avatar *string) commerce.ProfileUpdate {
	var update commerce.ProfileUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "first":
			update.FirstName = first
		case "last":
			update.LastName = last
		case "phone":
			update.Phone = phone
		case "avatar":
			update.AvatarURL = avatar
		}
	})
	return update
}

func printSnapshot(s storefront.Snapshot) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(s)
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: storefront <command> [flags]")
	fmt.Fprintln(os.Stderr, "  account: status login google register verify resend forgot reset logout refresh profile")
	fmt.Fprintln(os.Stderr, "  cart:    add remove quantity clear-cart checkout")
	fmt.Fprintln(os.Stderr, "  wishlist: wish unwish clear-wishlist")
}
