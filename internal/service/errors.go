package service

import (
	"errors"

	"github.com/socialhub/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("incorrect user/password")
	ErrEmailNotConfirmed  = errors.New("email must be confirmed first")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTooManyRequests    = errors.New("too many requests, try again later")

	ErrUsernameRequired = errors.New("please introduce a username")
	ErrPasswordRequired = errors.New("password is required")
	ErrInvalidEmail     = errors.New("invalid email address format")
	ErrUsernameTaken    = errors.New("username already in use")
	ErrEmailTaken       = errors.New("email already in use")
	ErrCannotFollowSelf = errors.New("users cannot follow themselves")

	ErrUserNotFound  = repository.ErrUserNotFound
	ErrDuplicateUser = repository.ErrDuplicateUser
)

var validationErrors = []error{
	ErrUsernameRequired,
	ErrPasswordRequired,
	ErrInvalidEmail,
	ErrUsernameTaken,
	ErrEmailTaken,
	ErrCannotFollowSelf,
	ErrDuplicateUser,
}

// IsValidation reports whether err is caused by invalid client input
func IsValidation(err error) bool {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthentication reports whether err is a failed login
func IsAuthentication(err error) bool {
	return errors.Is(err, ErrInvalidCredentials) || errors.Is(err, ErrEmailNotConfirmed)
}
