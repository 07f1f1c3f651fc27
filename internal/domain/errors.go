package domain

import "errors"

var (
	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrRecordNotFound is returned when a frequency record does not exist
	ErrRecordNotFound = errors.New("frequency record not found")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrInvalidEntry is returned when a cache entry violates its tier shape
	ErrInvalidEntry = errors.New("invalid cache entry")

	// ErrFetchTimeout is returned when a commerce request exceeds its time budget
	ErrFetchTimeout = errors.New("commerce request timed out")

	// ErrRateLimited is returned when the remote source answers 429
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrCommerceAPIFailure is returned when a commerce API request fails
	ErrCommerceAPIFailure = errors.New("commerce API request failed")

	// ErrProductNotFound is returned when a product page does not exist
	ErrProductNotFound = errors.New("product not found")

	// ErrCatalogUnavailable is returned when no catalog snapshot can be served
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)
