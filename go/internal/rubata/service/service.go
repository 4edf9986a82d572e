// Package service exposes the rubata commands as a Connect RPC service.
package service

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
	"github.com/pietro1412/fantacontratti/go/internal/rubata/coordinator"
	"github.com/rs/zerolog/log"
)

// Sessions defines what the service layer needs from the session registry
type Sessions interface {
	Create(ctx context.Context, leagueID uuid.UUID, admins []uuid.UUID) (*coordinator.Coordinator, error)
	Get(sessionID uuid.UUID) (*coordinator.Coordinator, error)
}

var _ Sessions = (*coordinator.Registry)(nil)

type Service struct {
	sessions Sessions
}

func NewService(sessions Sessions) *Service {
	return &Service{sessions: sessions}
}

// CreateSession opens the rubata of a league. Called by the league
// collaborator when the market window starts.
func (s *Service) CreateSession(ctx context.Context, req *connect.Request[CreateSessionRequest]) (*connect.Response[StatusResponse], error) {
	leagueID, err := parseID("league_id", req.Msg.LeagueID)
	if err != nil {
		return nil, errorToConnect(err)
	}
	admins := make([]uuid.UUID, 0, len(req.Msg.AdminIDs))
	for _, raw := range req.Msg.AdminIDs {
		id, err := parseID("admin_ids", raw)
		if err != nil {
			return nil, errorToConnect(err)
		}
		admins = append(admins, id)
	}

	c, err := s.sessions.Create(ctx, leagueID, admins)
	if err != nil {
		return nil, errorToConnect(err)
	}
	log.Info().
		Str("session_id", c.ID().String()).
		Str("league_id", leagueID.String()).
		Msg("rubata session created")
	return respond(c.GetStatus(), true), nil
}

func (s *Service) GetStatus(ctx context.Context, req *connect.Request[GetStatusRequest]) (*connect.Response[StatusResponse], error) {
	sessionID, err := parseID("session_id", req.Msg.SessionID)
	if err != nil {
		return nil, errorToConnect(err)
	}
	c, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, errorToConnect(err)
	}
	st := c.GetStatus()
	return respond(st, isAdmin(st, req.Msg.ActorID)), nil
}

func (s *Service) SetOrder(ctx context.Context, req *connect.Request[SetOrderRequest]) (*connect.Response[StatusResponse], error) {
	order := make([]uuid.UUID, 0, len(req.Msg.Order))
	for _, raw := range req.Msg.Order {
		id, err := parseID("order", raw)
		if err != nil {
			return nil, errorToConnect(err)
		}
		order = append(order, id)
	}
	return s.run(ctx, req.Msg.SessionCommand, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.SetOrder(ctx, actor, order)
	})
}

func (s *Service) GenerateBoard(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.GenerateBoard(ctx, actor)
	})
}

func (s *Service) StartRubata(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.StartRubata(ctx, actor)
	})
}

func (s *Service) UpdateTimers(ctx context.Context, req *connect.Request[UpdateTimersRequest]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, req.Msg.SessionCommand, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.UpdateTimers(ctx, actor, req.Msg.OfferTimerSeconds, req.Msg.AuctionTimerSeconds)
	})
}

func (s *Service) Pause(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.Pause(ctx, actor)
	})
}

func (s *Service) Resume(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.Resume(ctx, actor)
	})
}

func (s *Service) Advance(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.Advance(ctx, actor)
	})
}

func (s *Service) GoBack(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.GoBack(ctx, actor)
	})
}

func (s *Service) CloseAuction(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.CloseAuction(ctx, actor)
	})
}

func (s *Service) CompleteRubata(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.CompleteRubata(ctx, actor)
	})
}

func (s *Service) ForceAllReady(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.ForceAllReady(ctx, actor)
	})
}

func (s *Service) ForceAllAcknowledge(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.ForceAllAcknowledge(ctx, actor)
	})
}

func (s *Service) ForceAllAppealAcks(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.ForceAllAppealAcks(ctx, actor)
	})
}

func (s *Service) ForceAllReadyToResume(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.ForceAllReadyToResume(ctx, actor)
	})
}

func (s *Service) DecideAppeal(ctx context.Context, req *connect.Request[DecideAppealRequest]) (*connect.Response[StatusResponse], error) {
	decision := models.AppealStatus(strings.ToUpper(strings.TrimSpace(req.Msg.Decision)))
	return s.run(ctx, req.Msg.SessionCommand, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.DecideAppeal(ctx, actor, decision, req.Msg.Notes)
	})
}

func (s *Service) SetReady(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.SetReady(ctx, actor)
	})
}

func (s *Service) MakeOffer(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.MakeOffer(ctx, actor)
	})
}

func (s *Service) Bid(ctx context.Context, req *connect.Request[BidRequest]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, req.Msg.SessionCommand, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.Bid(ctx, actor, req.Msg.Amount)
	})
}

func (s *Service) Acknowledge(ctx context.Context, req *connect.Request[AcknowledgeRequest]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, req.Msg.SessionCommand, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.Acknowledge(ctx, actor, req.Msg.Prophecy)
	})
}

func (s *Service) SubmitAppeal(ctx context.Context, req *connect.Request[SubmitAppealRequest]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, req.Msg.SessionCommand, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.SubmitAppeal(ctx, actor, req.Msg.Reason)
	})
}

func (s *Service) AcknowledgeAppealDecision(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.AcknowledgeAppealDecision(ctx, actor)
	})
}

func (s *Service) MarkReadyToResume(ctx context.Context, req *connect.Request[SessionCommand]) (*connect.Response[StatusResponse], error) {
	return s.run(ctx, *req.Msg, func(c *coordinator.Coordinator, actor uuid.UUID) error {
		return c.MarkReadyToResume(ctx, actor)
	})
}

// run resolves the session and actor, applies fn and answers with the status
// published after it.
func (s *Service) run(ctx context.Context, cmd SessionCommand, fn func(c *coordinator.Coordinator, actor uuid.UUID) error) (*connect.Response[StatusResponse], error) {
	sessionID, err := parseID("session_id", cmd.SessionID)
	if err != nil {
		return nil, errorToConnect(err)
	}
	actor, err := parseID("actor_id", cmd.ActorID)
	if err != nil {
		return nil, errorToConnect(err)
	}
	c, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, errorToConnect(err)
	}

	if err := fn(c, actor); err != nil {
		log.Debug().
			Err(err).
			Str("session_id", sessionID.String()).
			Str("actor_id", actor.String()).
			Msg("rubata command rejected")
		return nil, errorToConnect(err)
	}

	st := c.GetStatus()
	return respond(st, isAdmin(st, cmd.ActorID)), nil
}

func respond(st *coordinator.Status, admin bool) *connect.Response[StatusResponse] {
	if !admin && st != nil && st.LastCommitError != "" {
		out := *st
		out.LastCommitError = ""
		st = &out
	}
	return connect.NewResponse(&StatusResponse{Status: st})
}

func isAdmin(st *coordinator.Status, actor string) bool {
	if st == nil || actor == "" {
		return false
	}
	id, err := uuid.Parse(actor)
	if err != nil {
		return false
	}
	for _, admin := range st.Admins {
		if admin == id {
			return true
		}
	}
	return false
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: %s: %v", models.ErrInvalidInput, field, err)
	}
	return id, nil
}
