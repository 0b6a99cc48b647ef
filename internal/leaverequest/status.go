package leaverequest

const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
)

const (
	KindVacation = "VACATION"
	KindLate     = "LATE"
	KindEarly    = "EARLY"
)

const (
	StepGroupApprovers = 1
	StepFinalApprover  = 2
)

// IsTerminal reports whether an aggregate status admits no further decisions.
func IsTerminal(status string) bool {
	return status == StatusApproved || status == StatusRejected
}

// DeriveStatus computes the aggregate request status from the slots alone.
// It is the single source of truth: the stored status column must always
// equal the value this function returns for the same slots.
//
// Per step present: the step is approved when every slot in it is approved,
// and rejected when any slot in it is rejected. One rejected step rejects
// the whole request regardless of step order. All present steps approved
// approves the request; an absent step never blocks. Anything else is
// pending.
func DeriveStatus(slots []ApproverSlot) string {
	total := map[int]int{}
	approved := map[int]int{}

	for _, slot := range slots {
		total[slot.Step]++
		switch slot.Status {
		case StatusRejected:
			return StatusRejected
		case StatusApproved:
			approved[slot.Step]++
		}
	}

	for step, n := range total {
		if approved[step] != n {
			return StatusPending
		}
	}

	return StatusApproved
}

// stepFullyApproved reports whether the given step exists and every slot in
// it is approved.
func stepFullyApproved(slots []ApproverSlot, step int) bool {
	found := false
	for _, slot := range slots {
		if slot.Step != step {
			continue
		}
		found = true
		if slot.Status != StatusApproved {
			return false
		}
	}
	return found
}

func hasStep(slots []ApproverSlot, step int) bool {
	for _, slot := range slots {
		if slot.Step == step {
			return true
		}
	}
	return false
}

// stepOneJustCompleted reports whether this decision finished the group
// approver tier while a final approver is still waiting. The notifier uses
// it to send the "awaiting final approval" variant instead of plain
// progress.
func stepOneJustCompleted(slots []ApproverSlot, decidedStep int, newStatus string) bool {
	return decidedStep == StepGroupApprovers &&
		newStatus == StatusPending &&
		stepFullyApproved(slots, StepGroupApprovers) &&
		hasStep(slots, StepFinalApprover)
}
