package core

// Incr/Decr implement the inhibit counter (spec §4.9): any number of
// media players and bridge tabs, suspends, app-pattern matches, or a
// manual "toggle_inhibit" can hold it up simultaneously, and the
// scheduler only resumes checking timeouts once the count returns to
// zero. The counter is intentionally a saturating uint32, not a bool,
// so two independent inhibitors releasing in either order both still
// leave the manager correctly inhibited until both are gone.

// IncrInhibitor adds one inhibiting holder and wakes the scheduler so
// it can reevaluate its paused state immediately.
func (m *Manager) IncrInhibitor() {
	m.State.ActiveInhibitorCount++
	m.ActivityNotify.Notify()
}

// DecrInhibitor removes one inhibiting holder, saturating at zero so a
// mismatched release never underflows into a false "still inhibited"
// reading.
func (m *Manager) DecrInhibitor() {
	if m.State.ActiveInhibitorCount > 0 {
		m.State.ActiveInhibitorCount--
	}
	m.ActivityNotify.Notify()
}

// ToggleManualInhibit flips a single manual inhibitor token held by
// the IPC "toggle_inhibit" command, returning the new held state.
func (m *Manager) ToggleManualInhibit() bool {
	if m.manualInhibitHeld {
		m.DecrInhibitor()
		m.manualInhibitHeld = false
		return false
	}
	m.IncrInhibitor()
	m.manualInhibitHeld = true
	return true
}
