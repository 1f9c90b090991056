package app

// Err returns the error from the most recent submission, if any.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
