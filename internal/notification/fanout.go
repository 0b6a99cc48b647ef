package notification

import (
	"leaveflow/internal/events"
	"leaveflow/internal/leaverequest"
)

type Variant string

const (
	VariantSubmittedConfirmation       Variant = "submitted-confirmation"
	VariantSubmittedNotice             Variant = "submitted-notice"
	VariantProgress                    Variant = "progress"
	VariantAwaitingFinalApproval       Variant = "awaiting-final-approval"
	VariantFinalApprovalActionRequired Variant = "final-approval-action-required"
	VariantFinalApproved               Variant = "final-approved"
	VariantFinalRejected               Variant = "final-rejected"
	VariantCancelled                   Variant = "cancelled"
)

// Stakeholders are the identities involved in one request's workflow.
// Approver ids come from the event snapshot; HR observers from the directory.
type Stakeholders struct {
	RequesterID      string
	Step1ApproverIDs []string
	FinalApproverID  string
	HRObserverIDs    []string
}

type Notification struct {
	RecipientID string
	Variant     Variant
}

// StakeholdersFromEvent extracts the per-request identities carried in the
// transition event itself.
func StakeholdersFromEvent(ev events.WorkflowTransitionEvent) Stakeholders {
	st := Stakeholders{RequesterID: ev.RequesterID}
	for _, slot := range ev.Slots {
		switch slot.Step {
		case leaverequest.StepGroupApprovers:
			st.Step1ApproverIDs = append(st.Step1ApproverIDs, slot.ApproverID)
		case leaverequest.StepFinalApprover:
			st.FinalApproverID = slot.ApproverID
		}
	}
	return st
}

// Classify expands one workflow transition into per-recipient notifications.
// Recipients are deduplicated by identity; when one person matches several
// categories the earliest (highest-priority) variant wins, so the final
// approver's action-required message is never downgraded to an observer
// notice.
func Classify(ev events.WorkflowTransitionEvent, st Stakeholders) []Notification {
	switch ev.EventType {
	case events.EventLeaveRequestSubmitted:
		out := newFanout()
		out.add(st.RequesterID, VariantSubmittedConfirmation)
		out.addAll(st.Step1ApproverIDs, VariantSubmittedNotice)
		out.add(st.FinalApproverID, VariantSubmittedNotice)
		out.addAll(st.HRObserverIDs, VariantSubmittedNotice)
		return out.notifications

	case events.EventLeaveRequestCancelled:
		out := newFanout()
		out.add(st.RequesterID, VariantCancelled)
		out.addAll(st.Step1ApproverIDs, VariantCancelled)
		out.add(st.FinalApproverID, VariantCancelled)
		out.addAll(st.HRObserverIDs, VariantCancelled)
		return out.notifications

	case events.EventLeaveRequestDecided:
		switch {
		case ev.NewStatus == leaverequest.StatusApproved:
			return broadcast(st, VariantFinalApproved)
		case ev.NewStatus == leaverequest.StatusRejected:
			return broadcast(st, VariantFinalRejected)
		case ev.Step1Completed:
			out := newFanout()
			out.add(st.FinalApproverID, VariantFinalApprovalActionRequired)
			out.add(st.RequesterID, VariantAwaitingFinalApproval)
			out.addAll(st.Step1ApproverIDs, VariantAwaitingFinalApproval)
			out.addAll(st.HRObserverIDs, VariantAwaitingFinalApproval)
			return out.notifications
		default:
			out := newFanout()
			out.add(st.RequesterID, VariantProgress)
			return out.notifications
		}
	}

	return nil
}

func broadcast(st Stakeholders, variant Variant) []Notification {
	out := newFanout()
	out.add(st.RequesterID, variant)
	out.addAll(st.Step1ApproverIDs, variant)
	out.add(st.FinalApproverID, variant)
	out.addAll(st.HRObserverIDs, variant)
	return out.notifications
}

type fanout struct {
	seen          map[string]bool
	notifications []Notification
}

func newFanout() *fanout {
	return &fanout{seen: map[string]bool{}}
}

func (f *fanout) add(recipientID string, variant Variant) {
	if recipientID == "" || f.seen[recipientID] {
		return
	}
	f.seen[recipientID] = true
	f.notifications = append(f.notifications, Notification{
		RecipientID: recipientID,
		Variant:     variant,
	})
}

func (f *fanout) addAll(recipientIDs []string, variant Variant) {
	for _, id := range recipientIDs {
		f.add(id, variant)
	}
}
