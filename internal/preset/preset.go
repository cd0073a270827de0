// Package preset implements the bijective encoding between a map identifier
// and the compact token embedded in a group preset string.
//
// The inner token is the marker 'f' followed by the id rendered in a
// 52-symbol alphabet. The full token prefixes that with 'M' and one symbol
// whose alphabet index equals the inner token's length, so a reader can skip
// the token without decoding it.
package preset

import (
	"fmt"
	"strings"
)

const (
	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	base     = len(alphabet)

	innerMarker  = 'f'
	lengthMarker = 'M'
)

// Encode renders a non-negative integer in the 52-symbol alphabet, most
// significant symbol first. Zero encodes to the first symbol, not "".
func Encode(n int) string {
	if n == 0 {
		return alphabet[:1]
	}
	var buf []byte
	for n > 0 {
		buf = append(buf, alphabet[n%base])
		n /= base
	}
	for i, j := 0, len(buf)-1; i < j; i, j = i+1, j-1 {
		buf[i], buf[j] = buf[j], buf[i]
	}
	return string(buf)
}

// DecodeIndex is the inverse of Encode.
func DecodeIndex(token string) (int, error) {
	if token == "" {
		return 0, fmt.Errorf("empty token")
	}
	n := 0
	for i := 0; i < len(token); i++ {
		idx := strings.IndexByte(alphabet, token[i])
		if idx < 0 {
			return 0, fmt.Errorf("token %q: symbol %q not in alphabet", token, token[i])
		}
		n = n*base + idx
	}
	return n, nil
}

// BuildToken builds the full length-prefixed token for a map id.
func BuildToken(mapID int) (string, error) {
	if mapID < 0 {
		return "", fmt.Errorf("map id %d is negative", mapID)
	}
	inner := string(innerMarker) + Encode(mapID)
	if len(inner) >= base {
		return "", fmt.Errorf("map id %d: inner token length %d exceeds alphabet", mapID, len(inner))
	}
	return string(lengthMarker) + string(alphabet[len(inner)]) + inner, nil
}

// Inject splices the token for mapID into preset at the first occurrence of
// the length marker, replacing the marker, its length symbol and that many
// following characters. The length prefix is recomputed, so tokens of
// differing lengths splice correctly.
//
// A preset with no marker is returned unchanged: such a preset cannot carry
// a map id, and catalog validation treats it as illegal rather than this
// function erroring. Injecting an id that already matches is a fixed point.
func Inject(preset string, mapID int) (string, error) {
	pos := strings.IndexByte(preset, lengthMarker)
	if pos == -1 {
		return preset, nil
	}
	if pos+1 >= len(preset) {
		return "", fmt.Errorf("preset %q: truncated after length marker", preset)
	}
	oldLen := strings.IndexByte(alphabet, preset[pos+1])
	if oldLen < 0 {
		return "", fmt.Errorf("preset %q: length symbol %q not in alphabet", preset, preset[pos+1])
	}
	if pos+2+oldLen > len(preset) {
		return "", fmt.Errorf("preset %q: token shorter than declared length %d", preset, oldLen)
	}
	token, err := BuildToken(mapID)
	if err != nil {
		return "", err
	}
	return preset[:pos] + token + preset[pos+2+oldLen:], nil
}

// MapID extracts the map id encoded in a preset.
func MapID(preset string) (int, error) {
	pos := strings.IndexByte(preset, lengthMarker)
	if pos == -1 {
		return 0, fmt.Errorf("preset %q: no length marker", preset)
	}
	if pos+1 >= len(preset) {
		return 0, fmt.Errorf("preset %q: truncated after length marker", preset)
	}
	length := strings.IndexByte(alphabet, preset[pos+1])
	if length < 0 {
		return 0, fmt.Errorf("preset %q: length symbol %q not in alphabet", preset, preset[pos+1])
	}
	if pos+2+length > len(preset) {
		return 0, fmt.Errorf("preset %q: token shorter than declared length %d", preset, length)
	}
	inner := preset[pos+2 : pos+2+length]
	if len(inner) == 0 || inner[0] != innerMarker {
		return 0, fmt.Errorf("preset %q: inner token %q missing marker", preset, inner)
	}
	return DecodeIndex(inner[1:])
}
