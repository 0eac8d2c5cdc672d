package objectgate

import (
	"fmt"
	"strings"
)

// ParseCopySource splits a "/bucket/key" reference at the first slash after
// the optional leading one.
func ParseCopySource(source string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(source, "/")
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: copy source %q must be /bucket/key", ErrInvalidKey, source)
	}
	return bucket, key, nil
}

// EncodeCopySource percent-encodes every byte outside the safe key set
// a-zA-Z0-9-!_.*'()@/ . A source made only of safe characters is returned
// unmodified; the store's copy-source parser breaks on the others.
func EncodeCopySource(source string) string {
	safe := true
	for i := 0; i < len(source); i++ {
		if !isSafeKeyByte(source[i]) {
			safe = false
			break
		}
	}
	if safe {
		return source
	}

	const hex = "0123456789ABCDEF"
	var sb strings.Builder
	sb.Grow(len(source) * 3)
	for i := 0; i < len(source); i++ {
		c := source[i]
		if isSafeKeyByte(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(hex[c>>4])
		sb.WriteByte(hex[c&0x0f])
	}
	return sb.String()
}

func isSafeKeyByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '-', '!', '_', '.', '*', '\'', '(', ')', '@', '/':
		return true
	}
	return false
}
