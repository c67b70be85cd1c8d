package service

import (
	"github.com/dukerupert/wander/internal/domain"
)

// Lookup errors - use domain.EINVALID
var (
	ErrLookupCodeRequired = domain.Errorf(domain.EINVALID, "", "Order code or email is required")
	ErrSessionIDRequired  = domain.Errorf(domain.EINVALID, "", "Session ID is required")
)

// Auth errors - use domain.EUNAUTHORIZED
var (
	ErrNotAuthenticated = domain.Errorf(domain.EUNAUTHORIZED, "", "Sign in to view your orders")
)
