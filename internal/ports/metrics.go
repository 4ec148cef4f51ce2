package ports

// OutcomeRecorder counts action outcomes.
type OutcomeRecorder interface {
	RecordOutcome(action string, outcome string)
}
