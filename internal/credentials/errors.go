package credentials

import "errors"

var (
	// ErrCredentialNotFound indicates no credential matched the lookup key.
	ErrCredentialNotFound = errors.New("credential_store.not_found")
	// ErrEmptyAccessToken indicates an empty access token was supplied.
	ErrEmptyAccessToken = errors.New("credential_store.empty_token")
	// ErrEmptyPlatformID indicates an empty platform identifier was supplied.
	ErrEmptyPlatformID = errors.New("credential_store.empty_platform_id")
)
