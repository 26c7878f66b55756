package pairAuth

import "errors"

var (
	// ErrUnauthorized is the single externally visible authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidPrincipal is returned when a principal lacks a user id or email.
	ErrInvalidPrincipal = errors.New("invalid principal")
	// ErrEngineNotReady is returned by methods called on a nil or partially built Engine.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrTokenIssue is returned when signing a token fails.
	ErrTokenIssue = errors.New("token issuance failed")
	// ErrInvalidCredentials is returned by Login for an unknown email or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by a UserProvider when no record matches.
	ErrUserNotFound = errors.New("user not found")
	// ErrAccountExists is returned by a UserProvider when the email is already registered.
	ErrAccountExists = errors.New("email already exists")
	// ErrAccountInvalid is returned for registration or profile input that fails validation.
	ErrAccountInvalid = errors.New("invalid account input")
	// ErrPasswordPolicy is returned when the password hasher rejects the plaintext.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrAccountsDisabled is returned by account operations when no UserProvider is configured.
	ErrAccountsDisabled = errors.New("account operations require a user provider")
)
