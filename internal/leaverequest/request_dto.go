package leaverequest

type SubmitLeaveRequest struct {
	LeaveKind         string   `json:"leave_kind" binding:"required,oneof=VACATION LATE EARLY"`
	Date              string   `json:"date" binding:"required"`
	Reason            string   `json:"reason"`
	GroupIDs          []string `json:"group_ids" binding:"omitempty,dive,uuid"`
	ManualApproverIDs []string `json:"manual_approver_ids" binding:"omitempty,dive,uuid"`
}

type DecideRequest struct {
	ApproverID string `json:"approver_id" binding:"required,uuid"`
	Approved   *bool  `json:"approved" binding:"required"`
}

type ProxyInfoResponse struct {
	ActorID   string `json:"actor_id"`
	ActorName string `json:"actor_name"`
}

type ApproverSlotResponse struct {
	Step       int                `json:"step"`
	ApproverID string             `json:"approver_id"`
	Status     string             `json:"status"`
	DecidedAt  *string            `json:"decided_at,omitempty"`
	Proxy      *ProxyInfoResponse `json:"proxy,omitempty"`
}

type LeaveRequestResponse struct {
	ID            string                 `json:"id"`
	RequestNumber string                 `json:"request_number"`
	RequesterID   string                 `json:"requester_id"`
	LeaveKind     string                 `json:"leave_kind"`
	Date          string                 `json:"date"`
	Reason        string                 `json:"reason"`
	Status        string                 `json:"status"`
	Approvers     []ApproverSlotResponse `json:"approvers"`
	CreatedAt     string                 `json:"created_at"`
}
