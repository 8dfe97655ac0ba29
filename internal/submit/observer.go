package submit

// Observer receives state changes and finished attempts. Calls happen after
// the registration's lock is released, on whichever goroutine caused the
// change, so implementations must be safe for concurrent use and must not
// block for long.
type Observer interface {
	StateChanged(Snapshot)
	AttemptFinished(Outcome)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState   func(Snapshot)
	OnOutcome func(Outcome)
}

// StateChanged calls OnState
func (o ObserverFuncs) StateChanged(s Snapshot) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

// AttemptFinished calls OnOutcome
func (o ObserverFuncs) AttemptFinished(out Outcome) {
	if o.OnOutcome != nil {
		o.OnOutcome(out)
	}
}
