package interfaces

import "errors"

// ErrNotFound is returned by lookups whose subject does not exist. Callers
// that treat absence as a normal condition (callback correlation, booking
// fallback) test for it with errors.Is.
var ErrNotFound = errors.New("repository: not found")
