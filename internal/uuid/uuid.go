// Package uuid issues the string identifiers used as primary keys.
// Keys are UUIDv7 so rows inserted later sort after earlier ones.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a fresh UUIDv7 in canonical form. If the random source fails
// it falls back to a random v4 id rather than returning an error to a
// BeforeCreate hook.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		return googleuuid.NewString()
	}
	return id.String()
}

// Parse checks s is a UUID and returns it normalized to lowercase
// canonical form, so path parameters match stored keys.
func Parse(s string) (string, error) {
	id, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
