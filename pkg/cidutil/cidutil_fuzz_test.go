package cidutil

import (
	"testing"
)

func FuzzParse(f *testing.F) {
	valid, _ := NewBuilder().ObjectCID([]byte("hello world payload"))

	f.Add(ETag(valid))
	f.Add("W/" + ETag(valid))
	f.Add(valid.String())
	f.Add(`"not a cid at all"`)
	f.Add("")
	f.Add(`"`)

	f.Fuzz(func(t *testing.T, s string) {
		c, err := Parse(s)
		if err != nil {
			return
		}
		// Anything Parse accepts must survive a round trip through ETag.
		again, err := Parse(ETag(c))
		if err != nil {
			t.Fatalf("re-parse of %q failed: %v", ETag(c), err)
		}
		if !again.Equals(c) {
			t.Fatalf("round trip changed %s into %s", c, again)
		}
	})
}

func FuzzVerify(f *testing.F) {
	builder := NewBuilder()
	valid := []byte("hello world payload")

	f.Add(valid, valid)
	f.Add(valid, []byte("tampered payload"))
	f.Add([]byte{}, []byte{})

	f.Fuzz(func(t *testing.T, stored []byte, served []byte) {
		c, err := builder.ObjectCID(stored)
		if err != nil {
			t.Fatal(err)
		}
		err = builder.Verify(c, served)
		if (err == nil) != (string(stored) == string(served)) {
			t.Fatalf("Verify disagreement for %q vs %q: %v", stored, served, err)
		}
	})
}
