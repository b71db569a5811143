package session

import (
	"crypto/rand"
	"fmt"
)

// Session ids end up in URLs and QR codes, so the alphabet excludes 0/O and
// 1/I/l to avoid misreads.
const idAlphabet = "23456789abcdefghjkmnpqrstuvwxyz"

const idLength = 12

// NewID returns a fresh collision-resistant session id.
func NewID() (string, error) {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	out := make([]byte, idLength)
	for i, b := range buf {
		out[i] = idAlphabet[int(b)%len(idAlphabet)]
	}
	return string(out), nil
}
