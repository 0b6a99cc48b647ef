package leaverequest

import (
	leaverequesterrors "leaveflow/internal/leaverequest/errors"
)

// GroupMembers pairs a selected group with its resolved member ids.
type GroupMembers struct {
	GroupID   string
	MemberIDs []string
}

// ApproverPlan is the resolved approver chain for a new request. Step1 is
// deduplicated and ordered; Step2 is empty when no separate final approval
// is needed.
type ApproverPlan struct {
	Step1 []string
	Step2 string
}

// ResolveApprovers merges the selected group memberships with manually added
// approvers into the step-1 set, preserving the order groups were selected
// in, and appends the final approver as step 2 unless that user already
// approves in step 1. Pure function; the caller resolves group membership
// through the directory first.
func ResolveApprovers(groups []GroupMembers, manualApproverIDs []string, finalApproverID string) (ApproverPlan, error) {
	if len(groups) == 0 && len(manualApproverIDs) == 0 {
		return ApproverPlan{}, leaverequesterrors.ErrNoApproversSelected
	}

	seen := map[string]bool{}
	step1 := make([]string, 0, len(manualApproverIDs))

	for _, g := range groups {
		for _, id := range g.MemberIDs {
			if seen[id] {
				continue
			}
			seen[id] = true
			step1 = append(step1, id)
		}
	}
	for _, id := range manualApproverIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		step1 = append(step1, id)
	}

	// Selected groups may all have been emptied since the form was rendered.
	if len(step1) == 0 {
		return ApproverPlan{}, leaverequesterrors.ErrNoApproversSelected
	}

	plan := ApproverPlan{Step1: step1}
	if finalApproverID != "" && !seen[finalApproverID] {
		plan.Step2 = finalApproverID
	}
	return plan, nil
}
