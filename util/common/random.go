package common

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
)

// RandomInt returns a random integer in 0 .. max-1 (crypto/rand backed).
func RandomInt(max int) int {
	if max <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0
	}
	return int(n.Int64())
}

// RandomSeed returns a non-negative random int64 suitable for recording
// as a draw seed. Seeds are generated once and persisted so a finished
// draw can be replayed.
func RandomSeed() int64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b[:]) &^ (1 << 63))
}

const seqChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomString returns a random alphanumeric string of length n.
func RandomString(n int) string {
	runes := make([]byte, n)
	for i := range runes {
		runes[i] = seqChars[RandomInt(len(seqChars))]
	}
	return string(runes)
}
