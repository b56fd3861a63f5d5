package model

import "errors"

// Model errors.
var (
	ErrInvalidWeek   = errors.New("invalid week")
	ErrInvalidPolicy = errors.New("invalid total week policy")
)
