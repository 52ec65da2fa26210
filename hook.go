package monitorz

// Hook is a handle to an observer registered with Registry.Observe.
//
// Unhook removes the observer; events already queued may still reach it.
// Each handle should be unhooked once: repeated calls return
// ErrAlreadyUnhooked.
//
// Example:
//
//	hook, err := registry.Observe(logSlowCalls)
//	if err != nil {
//	    return err
//	}
//	defer hook.Unhook()
type Hook struct {
	// unhook performs the removal and is cleared after the first call.
	unhook func() error
}

// Unhook removes the observer from its registry.
//
// Returns:
//   - nil: observer removed
//   - ErrAlreadyUnhooked: handle already used or zero value
//   - ErrHookNotFound: observer no longer registered
func (h *Hook) Unhook() error {
	if h.unhook == nil {
		return ErrAlreadyUnhooked
	}
	err := h.unhook()
	h.unhook = nil
	return err
}
