package protocol

import "errors"

var (
	ErrEmptyTemplate = errors.New("template file is empty")
	ErrInvalidConfig = errors.New("invalid configuration file")
	ErrCSVRequired   = errors.New("configuration requires a CSV file")
)
