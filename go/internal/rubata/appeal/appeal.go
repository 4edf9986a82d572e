// Package appeal runs the dispute flow that can follow an auction close.
package appeal

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/auction"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/gate"
)

// Stage tracks where an appeal is in its flow.
type Stage string

const (
	StageUnderReview    Stage = "UNDER_REVIEW"
	StageDecided        Stage = "DECIDED"
	StageAwaitingResume Stage = "AWAITING_RESUME"
	StageResolved       Stage = "RESOLVED"
)

// Outcome tells the coordinator what to do once everybody acknowledged the decision.
type Outcome string

const (
	OutcomeCommit      Outcome = "COMMIT"
	OutcomeAwaitResume Outcome = "AWAIT_RESUME"
)

type Appeal struct {
	ID          uuid.UUID           `json:"id"`
	Snapshot    auction.Snapshot    `json:"snapshot_before_close"`
	Reason      string              `json:"reason"`
	SubmittedBy uuid.UUID           `json:"submitted_by"`
	Status      models.AppealStatus `json:"status"`
	AdminNotes  string              `json:"admin_notes,omitempty"`
	Stage       Stage               `json:"stage"`
	SubmittedAt time.Time           `json:"submitted_at"`
	DecidedAt   *time.Time          `json:"decided_at,omitempty"`
}

// Process holds the appeal for one auction close. A new close needs a new Process.
type Process struct {
	Appeal *Appeal `json:"appeal,omitempty"`
}

// Unresolved reports whether an appeal is still waiting on its admin decision.
func (p *Process) Unresolved() bool {
	return p.Appeal != nil && p.Appeal.Status == models.AppealStatusPending
}

// Active reports whether the appeal flow still owns the session.
func (p *Process) Active() bool {
	return p.Appeal != nil && p.Appeal.Stage != StageResolved
}

// Submit opens an appeal. Only the first submission for a close is accepted.
func (p *Process) Submit(memberID uuid.UUID, reason string, snap auction.Snapshot, now time.Time) error {
	if p.Appeal != nil {
		return fmt.Errorf("%w: an appeal was already submitted by %s", models.ErrConflict, p.Appeal.SubmittedBy)
	}
	if reason == "" {
		return fmt.Errorf("%w: appeal reason is required", models.ErrInvalidInput)
	}
	p.Appeal = &Appeal{
		ID:          uuid.New(),
		Snapshot:    snap,
		Reason:      reason,
		SubmittedBy: memberID,
		Status:      models.AppealStatusPending,
		Stage:       StageUnderReview,
		SubmittedAt: now,
	}
	return nil
}

// Decide records the admin decision and returns the acknowledgment gate every
// member must pass. Deciding an already decided appeal changes nothing.
func (p *Process) Decide(decision models.AppealStatus, notes string, required []uuid.UUID, now time.Time) (*gate.Gate, bool, error) {
	if p.Appeal == nil {
		return nil, false, fmt.Errorf("%w: no appeal to decide", models.ErrValidation)
	}
	if decision != models.AppealStatusAccepted && decision != models.AppealStatusRejected {
		return nil, false, fmt.Errorf("%w: decision must be ACCEPTED or REJECTED, got %q", models.ErrInvalidInput, decision)
	}
	if p.Appeal.Status != models.AppealStatusPending {
		return nil, false, nil
	}

	p.Appeal.Status = decision
	p.Appeal.AdminNotes = notes
	p.Appeal.Stage = StageDecided
	decidedAt := now
	p.Appeal.DecidedAt = &decidedAt

	return gate.New(models.PurposeAwaitingAppealAck, required, now), true, nil
}

// AppealAckSatisfied moves past the decision acknowledgments. A rejected appeal
// resolves into a commit of the original outcome; an accepted one needs every
// member ready again before bidding reopens.
func (p *Process) AppealAckSatisfied(required []uuid.UUID, now time.Time) (Outcome, *gate.Gate, error) {
	if p.Appeal == nil || p.Appeal.Stage != StageDecided {
		return "", nil, fmt.Errorf("%w: appeal is not waiting for acknowledgments", models.ErrValidation)
	}
	if p.Appeal.Status == models.AppealStatusRejected {
		p.Appeal.Stage = StageResolved
		return OutcomeCommit, nil, nil
	}
	p.Appeal.Stage = StageAwaitingResume
	return OutcomeAwaitResume, gate.New(models.PurposeAwaitingResume, required, now), nil
}

// ResumeSatisfied resolves an accepted appeal and hands back the snapshot the
// auction replays from.
func (p *Process) ResumeSatisfied() (auction.Snapshot, error) {
	if p.Appeal == nil || p.Appeal.Stage != StageAwaitingResume {
		return auction.Snapshot{}, fmt.Errorf("%w: appeal is not waiting to resume", models.ErrValidation)
	}
	p.Appeal.Stage = StageResolved
	return p.Appeal.Snapshot, nil
}
