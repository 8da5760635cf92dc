package domain

import "errors"

// Cart errors
var (
	ErrOutOfStock      = errors.New("product is out of stock")
	ErrMaxStockReached = errors.New("maximum available stock reached")
	ErrInvalidQuantity = errors.New("quantity must be a whole number")
	ErrItemNotFound    = errors.New("item not found in cart")
)

// Payment errors
var (
	ErrInsufficientCash  = errors.New("cash received is less than total")
	ErrCardTypeRequired  = errors.New("card type is required")
	ErrReferenceTooShort = errors.New("transfer reference is too short")
	ErrMethodRequired    = errors.New("payment method is required")
	ErrUnknownMethod     = errors.New("unknown payment method")
	ErrMethodMismatch    = errors.New("field does not belong to the selected payment method")
	ErrNegativeAmount    = errors.New("amount cannot be negative")
)

// Checkout errors
var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrNotReady          = errors.New("checkout is not ready")
	ErrSubmitInProgress  = errors.New("sale submission already in progress")
	ErrIllegalTransition = errors.New("illegal transition of checkout status")
	ErrSessionNotFound   = errors.New("terminal session not found")
	ErrSessionConflict   = errors.New("terminal session was changed by another instance")
)
