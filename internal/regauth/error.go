package regauth

import "errors"

// ErrParseFailure indicates a Www-Authenticate header could not be parsed.
var ErrParseFailure = errors.New("failed to parse authentication header")
