package domain

// AllocKind is the closed set of outcomes the Allocator can produce. Spec
// §9 asks for tagged variants here rather than an exception hierarchy: the
// Processor switches on Kind instead of type-asserting on error chains.
type AllocKind string

const (
	AllocSuccess      AllocKind = "SUCCESS"
	AllocInsufficient AllocKind = "INSUFFICIENT"
	AllocEventPast    AllocKind = "EVENT_PAST"
	AllocConflict     AllocKind = "CONFLICT"
	AllocTimeout      AllocKind = "TIMEOUT"
	AllocInternal     AllocKind = "INTERNAL"
)

// AllocOutcome is the Allocator's result (spec §4.2). Exactly one of
// Tickets/Err is meaningful depending on Kind: Tickets on AllocSuccess,
// Err otherwise.
type AllocOutcome struct {
	Kind    AllocKind
	Tickets []Ticket
	Err     error
}

func AllocSuccessOutcome(tickets []Ticket) AllocOutcome {
	return AllocOutcome{Kind: AllocSuccess, Tickets: tickets}
}

func AllocInsufficientOutcome() AllocOutcome {
	return AllocOutcome{Kind: AllocInsufficient, Err: ErrInsufficient("not enough tickets remain")}
}

func AllocEventPastOutcome() AllocOutcome {
	return AllocOutcome{Kind: AllocEventPast, Err: ErrEventPast("event has already started")}
}

func AllocConflictOutcome(err error) AllocOutcome {
	return AllocOutcome{Kind: AllocConflict, Err: err}
}

func AllocTimeoutOutcome(err error) AllocOutcome {
	return AllocOutcome{Kind: AllocTimeout, Err: err}
}

func AllocInternalOutcome(err error) AllocOutcome {
	return AllocOutcome{Kind: AllocInternal, Err: err}
}

// Retryable reports whether the Processor should retry the owning intent
// with backoff (spec §4.3) rather than fail it immediately.
func (o AllocOutcome) Retryable() bool {
	return o.Kind == AllocConflict || o.Kind == AllocTimeout
}
