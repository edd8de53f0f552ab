package api

import "errors"

var (
	ErrNotFound    = errors.New("no snapshot for this location")
	ErrRateLimited = errors.New("rate limited by API")
)
