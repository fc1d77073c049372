package eventbus

import "errors"

// ErrClosed is returned when publishing or subscribing on a closed bus.
var ErrClosed = errors.New("eventbus: closed")
