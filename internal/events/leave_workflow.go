package events

import "time"

const LeaveWorkflowTopic = "hr.leave.workflow.v1"

const (
	EventLeaveRequestSubmitted = "leave_request_submitted"
	EventLeaveRequestDecided   = "leave_request_decided"
	EventLeaveRequestCancelled = "leave_request_cancelled"
)

// SlotSnapshot is the wire form of one approver slot at transition time.
type SlotSnapshot struct {
	Step           int    `json:"step"`
	ApproverID     string `json:"approver_id"`
	Status         string `json:"status"`
	ProxyActorID   string `json:"proxy_actor_id,omitempty"`
	ProxyActorName string `json:"proxy_actor_name,omitempty"`
}

// WorkflowTransitionEvent is emitted on every aggregate transition of a
// leave request, including submission and cancellation. It carries the full
// slot snapshot so the notifier never has to re-read the request row, which
// may already have moved on (or, for cancellations, no longer exist).
type WorkflowTransitionEvent struct {
	EventType      string         `json:"event_type"`
	TraceID        string         `json:"trace_id,omitempty"`
	LeaveRequestID string         `json:"leave_request_id"`
	RequestNumber  string         `json:"request_number"`
	RequesterID    string         `json:"requester_id"`
	LeaveKind      string         `json:"leave_kind"`
	Date           string         `json:"date"`
	PrevStatus     string         `json:"prev_status"`
	NewStatus      string         `json:"new_status"`
	Step1Completed bool           `json:"step1_completed"`
	DecidedSlot    *SlotSnapshot  `json:"decided_slot,omitempty"`
	ActingUserID   string         `json:"acting_user_id,omitempty"`
	ActingUserName string         `json:"acting_user_name,omitempty"`
	Slots          []SlotSnapshot `json:"slots"`
	OccurredAt     time.Time      `json:"occurred_at"`
}
