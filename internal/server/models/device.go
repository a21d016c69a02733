package models

import "time"

// Device is an enrolled device. SecretHash is argon2id(secret, Salt).
type Device struct {
	ID         string
	Salt       []byte
	SecretHash []byte
	CreatedAt  time.Time
}
