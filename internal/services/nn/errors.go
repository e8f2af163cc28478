package nn

import "errors"

var (
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidConfig     = errors.New("invalid model config")
)
