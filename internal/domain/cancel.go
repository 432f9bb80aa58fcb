package domain

// CancelKind is the closed set of outcomes Cancellation can produce. Spec
// §4.5's "NOT_CANCELLABLE" is deliberately not one of the nine ErrCode
// kinds in errors.go — it is a normal, expected Cancellation result (the
// intent simply moved on before the cancel arrived), not a caller error.
// NOT_FOUND and FORBIDDEN remain AppError since those are caller mistakes.
type CancelKind string

const (
	CancelOK            CancelKind = "CANCELLED"
	CancelNotCancellable CancelKind = "NOT_CANCELLABLE"
)

// CancelOutcome is Cancellation's result (spec §4.5). CurrentStatus is only
// meaningful when Kind is CancelNotCancellable — it reports the status the
// intent had already reached (PROCESSING or a terminal state).
type CancelOutcome struct {
	Kind          CancelKind
	CurrentStatus Status
}

func CancelledOutcome() CancelOutcome {
	return CancelOutcome{Kind: CancelOK}
}

func NotCancellableOutcome(current Status) CancelOutcome {
	return CancelOutcome{Kind: CancelNotCancellable, CurrentStatus: current}
}
