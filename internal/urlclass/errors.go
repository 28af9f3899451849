package urlclass

import "errors"

// ErrUnparseable is returned when the input string is not a parseable
// absolute URL.
var ErrUnparseable = errors.New("urlclass: unparseable url")
