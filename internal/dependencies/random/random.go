package random

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/google/uuid"
)

// IDAlphabet is used for human-facing entity IDs (no confusable characters)
const IDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Random provides identifier generation that can be mocked for testing
type Random interface {
	// String generates a random string of the given length from the given alphabet
	String(length int, alphabet string) string

	// UUID returns a new random (version 4) UUID string
	UUID() string
}

// CryptoRandom implements Random using crypto/rand
type CryptoRandom struct{}

// New creates a new CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

// String generates a random string of the given length from the given alphabet
func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || len(alphabet) == 0 {
		return ""
	}
	limit := big.NewInt(int64(len(alphabet)))
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			panic(err) // crypto/rand does not fail on supported platforms
		}
		result[i] = alphabet[n.Int64()]
	}
	return string(result)
}

func (r *CryptoRandom) UUID() string {
	return uuid.NewString()
}

// IDLength is the number of random characters in generated entity IDs
const IDLength = 8

// UniqueID draws prefixed IDs until taken reports one that is free
func UniqueID(ctx context.Context, r Random, prefix string, taken func(id string) (bool, error)) (string, error) {
	for {
		id := prefix + r.String(IDLength, IDAlphabet)
		used, err := taken(id)
		if err != nil {
			return "", err
		}
		if !used {
			return id, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
}

// Lookup adapts a get-by-ID call to UniqueID: notFound means the ID is free
func Lookup(err, notFound error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, notFound):
		return false, nil
	default:
		return false, err
	}
}
