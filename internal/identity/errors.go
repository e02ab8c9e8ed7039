package identity

import "errors"

// Domain errors
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidPassword     = errors.New("invalid password")
	ErrInvalidUserData     = errors.New("invalid user data")
	ErrPasswordReuse       = errors.New("new password must differ from the current one")
	ErrInvalidNotification = errors.New("invalid notification type")
)
