package utils

// Guard runs a cleanup when a function that acquired a resource (e.g: a locked pixel buffer)
// fails part way through and returns early. Correct usage of a Guard uses the following pattern:
//
//	guard := NewGuard(func() { buf.UnlockReadOnly() })
//	defer guard.OnFail()
//	if (error) { return error }
//	guard.Success()
//	return reader, nil
//
// Ownership of the resource passes to the returned value on success.
type Guard struct {
	OnFail  func()
	success bool
}

// NewGuard returns a NewGuard.
func NewGuard(onFailCleanup func()) *Guard {
	ret := &Guard{}
	ret.OnFail = func() {
		if !ret.success {
			onFailCleanup()
		}
	}
	return ret
}

// Success declares the function succeeded and the "failure" cleanup code does not need to be
// executed.
func (guard *Guard) Success() {
	guard.success = true
}
