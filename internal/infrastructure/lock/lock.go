package lock

import "errors"

// ErrLocked is returned when another holder owns the key.
var ErrLocked = errors.New("lock: key is held")
