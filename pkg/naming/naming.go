// Package naming derives the on-disk object identifier for a (bucket, key)
// pair. Everything here is pure: no I/O, no shared state.
package naming

import (
	"encoding/hex"
	"fmt"

	"github.com/agenthands/amane/pkg/core"
	"github.com/multiformats/go-multihash"
)

// Separator joins the bucket digest and the key digest.
const Separator = "_"

// IDLength is the length of every ObjectID: two sha2-256 hex digests and the separator.
const IDLength = 64 + len(Separator) + 64

// Hex returns the lowercase hex sha2-256 digest of the sanitized value.
func Hex(value string) string {
	mh, err := multihash.Sum([]byte(Sanitize(value)), multihash.SHA2_256, -1)
	if err != nil {
		// sha2-256 is always registered with go-multihash
		panic(fmt.Sprintf("naming: sha2-256 multihash: %v", err))
	}
	dec, err := multihash.Decode(mh)
	if err != nil {
		panic(fmt.Sprintf("naming: decode multihash: %v", err))
	}
	return hex.EncodeToString(dec.Digest)
}

// Derive maps a (bucket, key) pair onto its object identifier.
func Derive(bucket, key string) core.ObjectID {
	return core.ObjectID(Hex(bucket) + Separator + Hex(key))
}

// BucketPrefix is the filename prefix shared by every object of bucket.
func BucketPrefix(bucket string) string {
	return Hex(bucket) + Separator
}

// IsObjectID reports whether name has the shape of an object identifier.
func IsObjectID(name string) bool {
	if len(name) != IDLength || name[64:65] != Separator {
		return false
	}
	for i := 0; i < len(name); i++ {
		if i == 64 {
			continue
		}
		c := name[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
