package knowledge

import "errors"

// ErrMalformed is returned when the knowledge file does not have the expected shape.
var ErrMalformed = errors.New("malformed knowledge file")
