package secrets

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for secret retrieval.
var (
	// ErrSecretNotFound indicates the loader has no secret under the given ID.
	ErrSecretNotFound = errors.New("secrets: secret not found")

	// ErrEmptySecret indicates the secret exists but carries no payload.
	ErrEmptySecret = errors.New("secrets: secret has no string payload")
)

// Credentials holds database connection credentials decoded from a secret
// payload.
//
// The JSON field names match the payload format used by RDS-managed
// secrets; unknown fields in the payload are ignored.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"dbname"`
}

// String returns a loggable representation with the password redacted.
func (c Credentials) String() string {
	return fmt.Sprintf("%s@%s:%d/%s", c.Username, c.Host, c.Port, c.DBName)
}

// Loader retrieves database credentials by secret ID.
//
// Implementations must be safe for concurrent use.
type Loader interface {
	// Load retrieves and decodes the credentials stored under secretID.
	Load(ctx context.Context, secretID string) (Credentials, error)
}

// Static is an in-memory Loader backed by a map, for tests and local
// development.
//
// Example:
//
//	loader := secrets.Static{
//	    "bank/primary": {Username: "app", Password: "s3cret", Host: "localhost", Port: 5432, DBName: "bank"},
//	}
type Static map[string]Credentials

// Compile-time assertion that Static implements Loader.
var _ Loader = (Static)(nil)

// Load returns the credentials stored under secretID.
//
// Returns ErrSecretNotFound if the ID is absent.
func (s Static) Load(_ context.Context, secretID string) (Credentials, error) {
	creds, ok := s[secretID]
	if !ok {
		return Credentials{}, fmt.Errorf("%w: %s", ErrSecretNotFound, secretID)
	}

	return creds, nil
}
