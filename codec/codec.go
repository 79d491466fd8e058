// Package codec turns ticket identities into scannable symbols and
// back. It is pure: no store or network access.
package codec

import (
	"encoding/base32"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// Symbol layout: LTK1.<ticket uuid>.<base32 crc32c of the uuid text>
const (
	symbolPrefix    = "LTK1"
	symbolSeparator = "."
)

var (
	// ErrMalformed marks payloads that fail framing or checksum.
	ErrMalformed = errors.New("malformed ticket symbol")
	// ErrInvalidIdentity marks well-framed symbols whose embedded id
	// is not structurally valid.
	ErrInvalidIdentity = errors.New("invalid ticket identity")
)

var (
	crcTable = crc32.MakeTable(crc32.Castagnoli)
	b32      = base32.StdEncoding.WithPadding(base32.NoPadding)
)

func checksum(id string) string {
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc32.Checksum([]byte(id), crcTable))
	return b32.EncodeToString(sum[:])
}

// Encode produces the text symbol for a ticket id.
func Encode(ticketId string) string {
	return symbolPrefix + symbolSeparator + ticketId + symbolSeparator + checksum(ticketId)
}

// EncodePNG renders the symbol as a QR code image of size x size
// pixels.
func EncodePNG(ticketId string, size int) ([]byte, error) {
	return qrcode.Encode(Encode(ticketId), qrcode.Medium, size)
}

// Decode parses a scanned payload back into a ticket id. Framing or
// checksum failures return ErrMalformed; a valid frame carrying a
// non-UUID id returns ErrInvalidIdentity.
func Decode(payload []byte) (string, error) {
	symbol := strings.TrimSpace(string(payload))
	parts := strings.Split(symbol, symbolSeparator)
	if len(parts) != 3 || parts[0] != symbolPrefix {
		return "", ErrMalformed
	}
	id, sum := parts[1], parts[2]
	if id == "" || sum != checksum(id) {
		return "", ErrMalformed
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidIdentity
	}
	return id, nil
}
