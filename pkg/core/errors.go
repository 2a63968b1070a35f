package core

import (
	"errors"
)

var (
	ErrNotFound     = errors.New("amane: not found")
	ErrInternal     = errors.New("amane: internal error")
	ErrInvalidInput = errors.New("amane: invalid input")
	ErrCorrupt      = errors.New("amane: corrupt data")
)
