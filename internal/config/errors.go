package config

import (
	"errors"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidConfig      = errors.New("invalid config")
	ErrLoadConfig         = errors.New("load config failed")
	ErrMissingCredentials = errors.New("myzmanim.user and myzmanim.key must be set")
)
