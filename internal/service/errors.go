package service

import "errors"

var (
	ErrUnauthenticated         = errors.New("authentication required")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrUserNotFound            = errors.New("user not found")
	ErrProductNotFound         = errors.New("product not found")
	ErrOrderNotFound           = errors.New("order not found")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInvalidOrderState       = errors.New("only pending orders can be cancelled")
	ErrAdminAlreadyInitialized = errors.New("admin already exists")
	ErrInvalidQuantity         = errors.New("quantity must be at least 1")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInvalidProduct          = errors.New("price must be non-negative with at most 2 decimals and stock must not be negative")
	ErrEmptyOrder              = errors.New("order has no items")
	ErrTooManyItems            = errors.New("order has too many items")
)
