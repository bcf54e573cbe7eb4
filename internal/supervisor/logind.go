package supervisor

// IsSessionLockedViaLogind corroborates process-liveness based lock
// detection against logind's own LockedHint property, the same
// property fancylock's media controller style of "call a D-Bus
// property/method and interpret the Variant" follows for MPRIS.
//
// The bool return distinguishes "asked logind and got an answer" from
// "couldn't ask" (no bus, no session path) so callers fall back to
// process-based detection only in the latter case rather than treating
// a failed probe as "not locked".
func (s *Supervisor) IsSessionLockedViaLogind() (locked bool, ok bool) {
	s.mu.Lock()
	conn, path := s.sysBus, s.sessionPath
	s.mu.Unlock()

	if conn == nil || path == "" {
		return false, false
	}

	obj := conn.Object("org.freedesktop.login1", path)
	v, err := obj.GetProperty("org.freedesktop.login1.Session.LockedHint")
	if err != nil {
		return false, false
	}
	b, isBool := v.Value.(bool)
	if !isBool {
		return false, false
	}
	return b, true
}

// SetSession updates the cached system-bus connection and session
// object path used by IsSessionLockedViaLogind, called once the power
// adapter resolves the current login session at startup.
func (s *Supervisor) SetSession(conn DbusConn, sessionPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sysBus = conn
	s.sessionPath = sessionPath
}
