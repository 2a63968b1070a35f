package bucket

import (
	"strings"
	"testing"

	"github.com/agenthands/amane/pkg/core"
	"github.com/agenthands/amane/pkg/naming"
)

func TestShardOf(t *testing.T) {
	id := naming.Derive("images", "a/b.png")
	s := shardOf(id)
	if s < 0 || s >= lockShards {
		t.Fatalf("shard out of range: %d", s)
	}
	if shardOf(id) != s {
		t.Fatal("shard not stable")
	}

	if got := shardOf(core.ObjectID(strings.Repeat("0", 65) + "ff" + strings.Repeat("0", 62))); got != 0xff {
		t.Errorf("got %d, want 255", got)
	}
	if got := shardOf("short"); got != 0 {
		t.Errorf("malformed id should map to shard 0, got %d", got)
	}
}

func TestKeyLocks_Nil(t *testing.T) {
	var l *KeyLocks
	unlock := l.Lock("x")
	unlock()
	runlock := l.RLock("x")
	runlock()
}

func TestKeyLocks_Exclusive(t *testing.T) {
	l := NewKeyLocks()
	id := naming.Derive("b", "k")

	unlock := l.Lock(id)
	acquired := make(chan struct{})
	go func() {
		release := l.RLock(id)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("shared lock acquired while exclusive lock held")
	default:
	}
	unlock()
	<-acquired
}
