package domain

import "strings"

type Status string

const (
	StatusCreated    Status = "CREATED"
	StatusSuccess    Status = "SUCCESS"
	StatusFailed     Status = "FAILED"
	StatusWaiting    Status = "WAITING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBypassed   Status = "BYPASSED"
	StatusCanceled   Status = "CANCELED"
	StatusUnknown    Status = "UNKNOWN"
)

// StatusFromString maps a raw GitLab status string to the internal enum.
// Matching is case-insensitive; empty or unrecognized input yields
// StatusUnknown.
func StatusFromString(raw string) Status {
	switch strings.ToLower(raw) {
	case "created":
		return StatusCreated
	case "success":
		return StatusSuccess
	case "failed":
		return StatusFailed
	case "pending", "waiting_for_resource", "preparing":
		return StatusWaiting
	case "running", "canceling":
		return StatusInProgress
	case "bypassed", "skipped":
		return StatusBypassed
	case "canceled":
		return StatusCanceled
	default:
		return StatusUnknown
	}
}
