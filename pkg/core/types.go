package core

// ObjectID is the on-disk identifier of a (bucket, key) pair:
// hex(sha256(bucket)) + "_" + hex(sha256(key)).
type ObjectID string

func (id ObjectID) String() string { return string(id) }
