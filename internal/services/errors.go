package services

import "errors"

var (
	ErrStoreNotFound        = errors.New("store not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductHasOrders     = errors.New("product has orders and cannot be deleted")
	ErrStoreAccessDenied    = errors.New("you do not have access to this store")
	ErrSlugTaken            = errors.New("slug is already taken")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrGuestEmailRequired   = errors.New("email is required for guest checkout")
	ErrInvalidCheckoutInput = errors.New("invalid checkout input")
	ErrCheckoutInProgress   = errors.New("checkout is already in progress")
	ErrOrderNotFound        = errors.New("order not found")
	ErrOrderAccessDenied    = errors.New("you do not have access to this order")
	ErrPaymentUnavailable   = errors.New("payment provider is unavailable, please try again")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailTaken           = errors.New("an account with this email already exists")
	ErrInvalidAuthInput     = errors.New("invalid account details")
)
