// Package gate is a multi-party acknowledgment barrier. It knows nothing
// about what it gates beyond its purpose tag and the payloads it collects.
package gate

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
)

type Gate struct {
	Purpose      models.GatePurpose   `json:"purpose"`
	Required     []uuid.UUID          `json:"required_member_ids"`
	Acknowledged map[uuid.UUID]string `json:"acknowledged"`
	OpenedAt     time.Time            `json:"opened_at"`
	Forced       bool                 `json:"forced"`
}

// Progress is a read-only view of a gate.
type Progress struct {
	Purpose      models.GatePurpose   `json:"purpose"`
	Required     int                  `json:"required"`
	Acknowledged int                  `json:"acknowledged"`
	Pending      []uuid.UUID          `json:"pending_member_ids"`
	Payloads     map[uuid.UUID]string `json:"payloads,omitempty"`
	Forced       bool                 `json:"forced"`
}

func New(purpose models.GatePurpose, required []uuid.UUID, now time.Time) *Gate {
	seen := make(map[uuid.UUID]bool, len(required))
	req := make([]uuid.UUID, 0, len(required))
	for _, id := range required {
		if !seen[id] {
			seen[id] = true
			req = append(req, id)
		}
	}
	return &Gate{
		Purpose:      purpose,
		Required:     req,
		Acknowledged: make(map[uuid.UUID]string, len(req)),
		OpenedAt:     now,
	}
}

func (g *Gate) isRequired(memberID uuid.UUID) bool {
	for _, id := range g.Required {
		if id == memberID {
			return true
		}
	}
	return false
}

// Acknowledge records memberID. Acknowledging twice is a no-op and keeps the
// first payload. satisfiedNow is true only for the call that completed the gate.
func (g *Gate) Acknowledge(memberID uuid.UUID, payload string) (satisfiedNow bool, err error) {
	if !g.isRequired(memberID) {
		return false, fmt.Errorf("%w: member %s is not part of the %s gate", models.ErrValidation, memberID, g.Purpose)
	}
	if _, ok := g.Acknowledged[memberID]; ok {
		return false, nil
	}
	wasSatisfied := g.IsSatisfied()
	g.Acknowledged[memberID] = payload
	return !wasSatisfied && g.IsSatisfied(), nil
}

func (g *Gate) HasAcknowledged(memberID uuid.UUID) bool {
	_, ok := g.Acknowledged[memberID]
	return ok
}

// IsSatisfied reports acknowledged ⊇ required.
func (g *Gate) IsSatisfied() bool {
	for _, id := range g.Required {
		if _, ok := g.Acknowledged[id]; !ok {
			return false
		}
	}
	return true
}

// ForceAll marks every required member as acknowledged. It reports whether
// this call is what satisfied the gate.
func (g *Gate) ForceAll() bool {
	if g.IsSatisfied() {
		return false
	}
	for _, id := range g.Required {
		if _, ok := g.Acknowledged[id]; !ok {
			g.Acknowledged[id] = ""
		}
	}
	g.Forced = true
	return true
}

// Pending returns the required members that have not acknowledged, sorted.
func (g *Gate) Pending() []uuid.UUID {
	var out []uuid.UUID
	for _, id := range g.Required {
		if _, ok := g.Acknowledged[id]; !ok {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (g *Gate) Progress() Progress {
	p := Progress{
		Purpose:  g.Purpose,
		Required: len(g.Required),
		Pending:  g.Pending(),
		Forced:   g.Forced,
	}
	for id, payload := range g.Acknowledged {
		if !g.isRequired(id) {
			continue
		}
		p.Acknowledged++
		if payload != "" {
			if p.Payloads == nil {
				p.Payloads = make(map[uuid.UUID]string)
			}
			p.Payloads[id] = payload
		}
	}
	return p
}
