package pages

import (
	"fmt"
	"time"
)

// WaitError reports an element that did not reach the expected state in time
type WaitError struct {
	Selector string
	State    string
	Timeout  time.Duration
	Err      error
}

func (e *WaitError) Error() string {
	return fmt.Sprintf("%s did not become %s within %s: %v", e.Selector, e.State, e.Timeout, e.Err)
}

func (e *WaitError) Unwrap() error {
	return e.Err
}
