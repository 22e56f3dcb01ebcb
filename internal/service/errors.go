package service

import "errors"

var (
	ErrInvalidInstant = errors.New("invalid instant")
	ErrInvalidWindow  = errors.New("closes_at must be after opens_at")
	ErrEmailTaken     = errors.New("email already registered")
)
