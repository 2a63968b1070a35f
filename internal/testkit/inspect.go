package testkit

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DirEntries returns the sorted file names in dir, split into payloads and
// sidecars.
func DirEntries(dir string) (payloads, sidecars []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".json") {
			sidecars = append(sidecars, e.Name())
		} else {
			payloads = append(payloads, e.Name())
		}
	}
	sort.Strings(payloads)
	sort.Strings(sidecars)
	return payloads, sidecars, nil
}

// CorruptFile overwrites the named file in dir with bytes that are not a
// valid sidecar.
func CorruptFile(dir, name string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0600)
}
