package caseflow

import "vettinghub/internal/audit"

// Replay folds a case's trail, oldest first, into the status and decision it
// implies. The materialized case row is a read cache over the trail; this is
// the function that makes the claim checkable.
func Replay(events []*audit.Event) (Status, Decision) {
	var (
		status   Status
		decision Decision
	)
	for _, e := range events {
		switch e.Type {
		case audit.EventSubmitted:
			status, decision = StatusPending, ""
		case audit.EventVetted:
			decision = Decision(e.Decision)
			if decision == DecisionReject {
				status = StatusRejected
			} else {
				status = StatusVetted
			}
		case audit.EventReopened:
			status, decision = StatusReopened, ""
		case audit.EventAssigned, audit.EventEdited:
			// no status change
		}
	}
	return status, decision
}
