package social

import (
	"context"
	"time"

	"github.com/gamegoo/socialgraph/config"
	"github.com/gamegoo/socialgraph/event"
	"github.com/gamegoo/socialgraph/metrics"
	"github.com/gamegoo/socialgraph/model"
	"go.uber.org/zap"
)

// Emitter receives events after the transaction that produced them commits.
// *event.Dispatcher satisfies it.
type Emitter interface {
	Emit(e event.Event)
}

// RequestSummary describes a friend request returned to callers.
type RequestSummary struct {
	RequestID   int64               `json:"request_id"`
	RequesterID int64               `json:"requester_id"`
	TargetID    int64               `json:"target_id"`
	Status      model.RequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	Message     string              `json:"message,omitempty"`
}

func summarize(r *model.FriendRequest, msg string) RequestSummary {
	return RequestSummary{
		RequestID:   r.ID,
		RequesterID: r.FromMemberID,
		TargetID:    r.ToMemberID,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		Message:     msg,
	}
}

// FriendSummary is one entry of a friend list.
type FriendSummary struct {
	MemberID  int64     `json:"member_id"`
	Nickname  string    `json:"nickname"`
	Liked     bool      `json:"liked"`
	CreatedAt time.Time `json:"created_at"`
}

// BlockSummary is one entry of a block list.
type BlockSummary struct {
	MemberID  int64     `json:"member_id"`
	Nickname  string    `json:"nickname"`
	BlockedAt time.Time `json:"blocked_at"`
}

// Service is the relationship engine: the friend request state machine,
// the block manager and the friend query layer over one Store.
type Service struct {
	store   *Store
	members MemberDirectory
	events  Emitter
	cfg     config.SocialConfig
	logger  *zap.Logger
}

// NewService creates a Service. events may be nil.
func NewService(store *Store, members MemberDirectory, events Emitter, cfg config.SocialConfig, logger *zap.Logger) *Service {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = 10
	}
	if cfg.MaxPageSize < cfg.DefaultPageSize {
		cfg.MaxPageSize = cfg.DefaultPageSize
	}
	return &Service{
		store:   store,
		members: members,
		events:  events,
		cfg:     cfg,
		logger:  logger,
	}
}

func (svc *Service) emit(e event.Event) {
	if svc.events == nil {
		return
	}
	svc.events.Emit(e)
}

// observe records latency and outcome of one operation. Use with defer.
func (svc *Service) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if *errp != nil {
		outcome = KindOf(*errp).String()
	}
	metrics.ObserveOperation(op, outcome, time.Since(start))
}

func checkMember(id int64) error {
	if id <= 0 {
		return ErrInvalidMember
	}
	return nil
}

func checkPair(a, b int64) error {
	if err := checkMember(a); err != nil {
		return err
	}
	return checkMember(b)
}

func checkRequestID(id int64) error {
	if id <= 0 {
		return ErrInvalidRequest
	}
	return nil
}

// requireActive fails with ErrMemberNotFound unless the member is active.
func (svc *Service) requireActive(ctx context.Context, memberID int64) error {
	if svc.members == nil {
		return nil
	}
	active, err := svc.members.IsActive(ctx, memberID)
	if err != nil {
		return classify(ctx, err)
	}
	if !active {
		return ErrMemberNotFound
	}
	return nil
}
