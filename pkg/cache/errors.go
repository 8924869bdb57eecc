package cache

import "errors"

// ErrNonNumeric is returned by Incr/Decr when the existing value at a key
// cannot be parsed as a base-10 integer.
var ErrNonNumeric = errors.New("cannot increment or decrement non-numeric value")
