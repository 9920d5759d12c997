package domain

import "errors"

var (
	// ErrProductNotFound is returned when no product matches an ID or code
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidProductID is returned when a product ID is not a UUID
	ErrInvalidProductID = errors.New("invalid product ID")

	// ErrInvalidCode is returned when a verification code fails validation
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrCacheMiss is returned when a key is absent from the cache
	ErrCacheMiss = errors.New("cache miss")
)
