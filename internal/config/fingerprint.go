package config

import (
	"fmt"
	"os"
)

// MinFingerprintSecretLength is the minimum byte length of FINGERPRINT_SECRET.
const MinFingerprintSecretLength = 16

// FingerprintConfig holds the key used to hash client device fingerprints.
type FingerprintConfig struct {
	Secret string
}

// NewFingerprintConfig reads FINGERPRINT_SECRET (required).
func NewFingerprintConfig() (*FingerprintConfig, error) {
	secret := os.Getenv("FINGERPRINT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("FINGERPRINT_SECRET is required but not set")
	}
	if len(secret) < MinFingerprintSecretLength {
		return nil, fmt.Errorf("FINGERPRINT_SECRET must be at least %d bytes", MinFingerprintSecretLength)
	}
	return &FingerprintConfig{Secret: secret}, nil
}
