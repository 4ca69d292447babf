package user

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"
)

const resetTokenBytes = 32

var randReader io.Reader = rand.Reader // mockable

// makeResetToken returns a random hex token to mail to the user, and the hash to store.
func makeResetToken() (token, hash string, err error) {
	b := make([]byte, resetTokenBytes)
	if _, err = io.ReadFull(randReader, b); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(b)
	return token, hashResetToken(token), nil
}

// hashResetToken returns the SHA-256 of token. Only hashes are persisted.
func hashResetToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
