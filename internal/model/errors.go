package model

import "errors"

// ErrNotFound is returned by every store implementation when a pack, file,
// or output does not exist. Callers compare with errors.Is.
var ErrNotFound = errors.New("not found")
