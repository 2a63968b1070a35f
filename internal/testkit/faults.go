package testkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/agenthands/amane/pkg/accessor"
	"github.com/agenthands/amane/pkg/core"
)

var ErrInjectedFault = errors.New("injected fault")

// Op names an accessor operation a fault can be attached to.
type Op string

const (
	OpRead   Op = "read"
	OpWrite  Op = "write"
	OpRemove Op = "remove"
	OpList   Op = "list"
	OpSize   Op = "size"
)

// FaultyAccessor wraps an accessor.Accessor and fails selected operations.
// A fault matches an (op, path) pair; an empty path matches every path.
type FaultyAccessor struct {
	Inner accessor.Accessor

	mu     sync.Mutex
	faults map[Op]map[string]error
	calls  map[Op]int
}

// NewFaultyAccessor returns a pass-through wrapper around inner.
func NewFaultyAccessor(inner accessor.Accessor) *FaultyAccessor {
	return &FaultyAccessor{
		Inner:  inner,
		faults: make(map[Op]map[string]error),
		calls:  make(map[Op]int),
	}
}

// Fail makes op on path return err. A nil err injects an ErrInternal-wrapped
// ErrInjectedFault, matching what the real accessor reports for I/O errors.
func (f *FaultyAccessor) Fail(op Op, path string, err error) {
	if err == nil {
		err = fmt.Errorf("%w: %w", core.ErrInternal, ErrInjectedFault)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faults[op] == nil {
		f.faults[op] = make(map[string]error)
	}
	f.faults[op][path] = err
}

// Heal removes every injected fault.
func (f *FaultyAccessor) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[Op]map[string]error)
}

// Calls reports how many times op was invoked.
func (f *FaultyAccessor) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyAccessor) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	byPath := f.faults[op]
	if err, ok := byPath[path]; ok {
		return err
	}
	return byPath[""]
}

func (f *FaultyAccessor) Read(ctx context.Context, path string) ([]byte, error) {
	if err := f.check(OpRead, path); err != nil {
		return nil, err
	}
	return f.Inner.Read(ctx, path)
}

func (f *FaultyAccessor) Write(ctx context.Context, path string, data []byte) error {
	if err := f.check(OpWrite, path); err != nil {
		return err
	}
	return f.Inner.Write(ctx, path, data)
}

func (f *FaultyAccessor) Remove(ctx context.Context, path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}
	return f.Inner.Remove(ctx, path)
}

func (f *FaultyAccessor) List(ctx context.Context) ([]string, error) {
	if err := f.check(OpList, ""); err != nil {
		return nil, err
	}
	return f.Inner.List(ctx)
}

func (f *FaultyAccessor) Size(ctx context.Context, path string) (int64, error) {
	if err := f.check(OpSize, path); err != nil {
		return 0, err
	}
	return f.Inner.Size(ctx, path)
}

func (f *FaultyAccessor) String() string {
	return "faulty(" + f.Inner.String() + ")"
}

var _ accessor.Accessor = (*FaultyAccessor)(nil)

// ErrorReader wraps an io.Reader and returns an error after returning N bytes.
type ErrorReader struct {
	r     io.Reader
	limit int64
	read  int64
	err   error
}

// NewErrorReader returns a reader that will inject the given error after reading 'limit' bytes.
// If err is nil, ErrInjectedFault is used.
func NewErrorReader(r io.Reader, limit int64, err error) *ErrorReader {
	if err == nil {
		err = ErrInjectedFault
	}
	return &ErrorReader{r: r, limit: limit, err: err}
}

func (e *ErrorReader) Read(p []byte) (int, error) {
	if e.read >= e.limit {
		return 0, e.err
	}
	if space := e.limit - e.read; int64(len(p)) > space {
		p = p[:space]
	}
	n, err := e.r.Read(p)
	e.read += int64(n)
	if err != nil {
		return n, err
	}
	if e.read >= e.limit {
		return n, e.err
	}
	return n, nil
}
