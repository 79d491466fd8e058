package model

// AllowedTransition reports whether from -> to is a legal lifecycle
// edge. The lost -> won edge exists only for replacement draws and is
// reachable solely through the draw engine.
func AllowedTransition(from, to TicketState) bool {
	if to == Void {
		return !from.IsTerminal()
	}
	switch from {
	case Issued:
		return to == Entered
	case Entered:
		return to == Won || to == Lost
	case Won:
		return to == Redeemed
	case Lost:
		return to == Won
	}
	return false
}
