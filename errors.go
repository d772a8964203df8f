package skipmap

import "errors"

// ErrNilKey is the panic value (wrapped) raised when a nil key is passed to
// Put, Get, ContainsKey or Remove.
var ErrNilKey = errors.New("skipmap: nil key")
