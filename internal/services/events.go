package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/progression-backend/internal/data/repos"
	types "github.com/yungbote/progression-backend/internal/domain"
	"github.com/yungbote/progression-backend/internal/platform/apierr"
	"github.com/yungbote/progression-backend/internal/platform/dbctx"
	"github.com/yungbote/progression-backend/internal/platform/logger"
)

const (
	maxClientEventIDLen = 128
	maxEventIDLen       = 160

	// clientKeyPrefix keeps client-supplied ids apart from the ids the
	// engine uses for its own events (badge:, mission:, admin:, ...).
	clientKeyPrefix = "client:"
)

type EventInput struct {
	ClientEventID string         `json:"client_event_id"`
	EventType     string         `json:"event_type"`
	GameType      string         `json:"game_type,omitempty"`
	XPEarned      int64          `json:"xp_earned"`
	CoinsEarned   int64          `json:"coins_earned"`
	Score         float64        `json:"score"`
	Metadata      map[string]any `json:"metadata,omitempty"`

	// set by engine flows whose amounts went through the ledger
	credited bool
}

// Recorded is an ingested event and the missions it completed.
type Recorded struct {
	Event     *types.ActivityEvent `json:"event"`
	Created   bool                 `json:"created"`
	Completed []*types.Mission     `json:"completed_missions,omitempty"`
}

type EventService interface {
	// Record validates and appends the event, then advances the actor's
	// current missions in the same transaction. A repeated client_event_id
	// returns the stored event with created=false.
	Record(dbc dbctx.Context, actorID uuid.UUID, in EventInput) (*types.ActivityEvent, bool, error)
	RecordDetailed(dbc dbctx.Context, actorID uuid.UUID, in EventInput) (*Recorded, error)
	// Append only writes the event.
	Append(dbc dbctx.Context, actorID uuid.UUID, in EventInput) (*types.ActivityEvent, bool, error)
	Find(dbc dbctx.Context, actorID uuid.UUID, clientEventID string) (*types.ActivityEvent, error)
	Recent(ctx context.Context, actorID uuid.UUID, limit int) ([]*types.ActivityEvent, error)
}

type eventService struct {
	db       *gorm.DB
	log      *logger.Logger
	repo     repos.ActivityEventRepo
	missions MissionService
}

func NewEventService(db *gorm.DB, baseLog *logger.Logger, repo repos.ActivityEventRepo, missions MissionService) EventService {
	return &eventService{
		db:       db,
		log:      baseLog.With("service", "EventService"),
		repo:     repo,
		missions: missions,
	}
}

func (s *eventService) Record(dbc dbctx.Context, actorID uuid.UUID, in EventInput) (*types.ActivityEvent, bool, error) {
	out, err := s.RecordDetailed(dbc, actorID, in)
	if err != nil {
		return nil, false, err
	}
	return out.Event, out.Created, nil
}

func (s *eventService) RecordDetailed(dbc dbctx.Context, actorID uuid.UUID, in EventInput) (*Recorded, error) {
	ev, err := buildEvent(actorID, in)
	if err != nil {
		return nil, err
	}
	out := &Recorded{}
	err = dbc.InTx(s.db, func(txc dbctx.Context) error {
		stored, created, err := s.insert(txc, ev)
		if err != nil {
			return err
		}
		out.Event, out.Created = stored, created
		if !created || s.missions == nil {
			return nil
		}
		done, err := s.missions.Advance(txc, actorID, stored)
		if err != nil {
			return err
		}
		out.Completed = done
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *eventService) Append(dbc dbctx.Context, actorID uuid.UUID, in EventInput) (*types.ActivityEvent, bool, error) {
	ev, err := buildEvent(actorID, in)
	if err != nil {
		return nil, false, err
	}
	return s.insert(dbc, ev)
}

func (s *eventService) insert(dbc dbctx.Context, ev *types.ActivityEvent) (*types.ActivityEvent, bool, error) {
	created, err := s.repo.Insert(dbc, ev)
	if err != nil {
		return nil, false, err
	}
	if created {
		return ev, true, nil
	}
	existing, err := s.repo.GetByClientID(dbc, ev.UserID, ev.ClientEventID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, apierr.New(apierr.KindTransient, apierr.CodeRetryable, "events.record", "duplicate event not visible yet")
	}
	s.log.Debug("duplicate event", "actor_id", ev.UserID, "client_event_id", ev.ClientEventID)
	return existing, false, nil
}

func (s *eventService) Find(dbc dbctx.Context, actorID uuid.UUID, clientEventID string) (*types.ActivityEvent, error) {
	clientEventID = strings.TrimSpace(clientEventID)
	if clientEventID == "" {
		return nil, nil
	}
	return s.repo.GetByClientID(dbc, actorID, clientEventID)
}

func (s *eventService) Recent(ctx context.Context, actorID uuid.UUID, limit int) ([]*types.ActivityEvent, error) {
	return s.repo.ListRecent(dbctx.Of(ctx), actorID, limit)
}

func buildEvent(actorID uuid.UUID, in EventInput) (*types.ActivityEvent, error) {
	const op = "events.record"
	if actorID == uuid.Nil {
		return nil, apierr.Validation(op, "actor id is required")
	}
	et := types.EventType(strings.TrimSpace(strings.ToLower(in.EventType)))
	if !et.Valid() {
		return nil, apierr.New(apierr.KindValidation, apierr.CodeUnknownEventType, op, "unknown event type "+string(et))
	}
	if in.XPEarned < 0 || in.CoinsEarned < 0 || in.Score < 0 {
		return nil, apierr.Validation(op, "amounts and score must be non-negative")
	}
	clientID := strings.TrimSpace(in.ClientEventID)
	if len(clientID) > maxEventIDLen {
		return nil, apierr.Validation(op, "client_event_id is too long")
	}
	if clientID == "" {
		clientID = uuid.New().String()
	}
	var meta datatypes.JSON
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, apierr.Validation(op, "metadata is not valid json")
		}
		meta = datatypes.JSON(raw)
	}
	return &types.ActivityEvent{
		UserID:        actorID,
		EventType:     et,
		GameType:      strings.TrimSpace(in.GameType),
		ClientEventID: clientID,
		XPEarned:      in.XPEarned,
		CoinsEarned:   in.CoinsEarned,
		Score:         in.Score,
		Metadata:      meta,
		Credited:      in.credited,
	}, nil
}

// clientEventKey namespaces a client-supplied event id, generating one when
// the client sent none.
func clientEventKey(op, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) > maxClientEventIDLen {
		return "", apierr.Validation(op, "client_event_id is too long")
	}
	if raw == "" {
		raw = uuid.New().String()
	}
	return clientKeyPrefix + raw, nil
}
