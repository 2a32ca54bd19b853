package usage

import "errors"

// ErrLimitReached indicates the install exhausted its monthly quota.
var ErrLimitReached = errors.New("limit reached")
