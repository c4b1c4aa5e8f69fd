package parallel

import "sync"

// ErrorCollector keeps the first non-nil error reported by a group of
// goroutines or futures. The zero value is ready to use and SetError is safe
// for concurrent callers.
type ErrorCollector struct {
	once sync.Once
	err  error
}

// SetError records err unless an error was already recorded. Nil is ignored.
func (c *ErrorCollector) SetError(err error) {
	if err == nil {
		return
	}
	c.once.Do(func() {
		c.err = err
	})
}

// Err returns the recorded error. Read it only after the reporting
// goroutines have finished.
func (c *ErrorCollector) Err() error {
	return c.err
}

// Reset clears the collector. It must not race with SetError.
func (c *ErrorCollector) Reset() {
	c.once = sync.Once{}
	c.err = nil
}
