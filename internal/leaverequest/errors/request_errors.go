package leaverequesterrors

import (
	"net/http"

	"leaveflow/internal/shared/apperror"
)

var (
	ErrInvalidRequesterID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid requester id",
		http.StatusBadRequest,
	)
	ErrInvalidApproverID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid approver id",
		http.StatusBadRequest,
	)
	ErrInvalidGroupID = apperror.New(
		apperror.CodeInvalidInput,
		"invalid group id",
		http.StatusBadRequest,
	)
	ErrInvalidLeaveKind = apperror.New(
		apperror.CodeInvalidInput,
		"leave kind must be one of VACATION, LATE, EARLY",
		http.StatusBadRequest,
	)
	ErrInvalidDateFormat = apperror.New(
		apperror.CodeInvalidInput,
		"invalid date format, expected YYYY-MM-DD",
		http.StatusBadRequest,
	)
	ErrNoApproversSelected = apperror.New(
		apperror.CodeInvalidInput,
		"at least one approver group or individual approver must be selected",
		http.StatusBadRequest,
	)
	ErrDuplicateDateRequest = apperror.New(
		apperror.CodeConflict,
		"an active leave request already exists for this date",
		http.StatusConflict,
	)
	ErrRequestNotFound = apperror.New(
		apperror.CodeNotFound,
		"leave request not found",
		http.StatusNotFound,
	)
	ErrNoPendingSlotForApprover = apperror.New(
		apperror.CodeInvalidState,
		"no pending approval slot for this approver, refresh and try again",
		http.StatusConflict,
	)
	ErrProxyNotAuthorized = apperror.New(
		apperror.CodeForbidden,
		"acting on behalf of another approver requires the leave manager capability",
		http.StatusForbidden,
	)
	ErrRequestAlreadyTerminal = apperror.New(
		apperror.CodeInvalidState,
		"leave request has already been approved or rejected",
		http.StatusConflict,
	)
	ErrConcurrentModification = apperror.New(
		apperror.CodeConflict,
		"leave request was modified concurrently, try again",
		http.StatusConflict,
	)
	ErrNotRequestOwner = apperror.New(
		apperror.CodeForbidden,
		"only the requester may cancel this leave request",
		http.StatusForbidden,
	)
)
