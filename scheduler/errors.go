package scheduler

import "errors"

var errPanicked = errors.New("scheduler: task panicked")
