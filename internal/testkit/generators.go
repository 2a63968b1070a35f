package testkit

import (
	"math/rand"
	"strings"
	"time"
)

// RNG provides a deterministic random number generator.
// If seed is 0, it uses the current time.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomBytes generates a slice of random bytes of the given length.
func RandomBytes(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	return b
}

const keyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789-."

// RandomKey builds a path-like object key with the given number of
// '/'-separated segments.
func RandomKey(r *rand.Rand, segments int) string {
	if segments < 1 {
		segments = 1
	}
	parts := make([]string, segments)
	for i := range parts {
		n := 1 + r.Intn(12)
		var sb strings.Builder
		for j := 0; j < n; j++ {
			sb.WriteByte(keyAlphabet[r.Intn(len(keyAlphabet))])
		}
		parts[i] = sb.String()
	}
	return strings.Join(parts, "/")
}

// RandomMeta builds n metadata entries with short alphanumeric keys.
func RandomMeta(r *rand.Rand, n int) map[string]string {
	meta := make(map[string]string, n)
	for len(meta) < n {
		meta[RandomKey(r, 1)] = RandomKey(r, 1)
	}
	return meta
}
