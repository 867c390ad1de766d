package domain

import "errors"

var (
	ErrEmailRegistered    = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")

	ErrTokenMissing = errors.New("token not provided")
	ErrTokenInvalid = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrInvalidImage    = errors.New("invalid image")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrUnknownCategory = errors.New("unknown category")
	ErrModelOutput     = errors.New("unexpected model output")

	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)
