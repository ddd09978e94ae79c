package service

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-ledger/internal/persistence"
	"github.com/spec-kit/ticket-ledger/internal/repository"
	"github.com/spec-kit/ticket-ledger/internal/timeline"
	apperrors "github.com/spec-kit/ticket-ledger/pkg/util"
)

// TimelineService is the Timeline Reconstructor read path. Reconstructed
// timelines are cached in Redis and invalidated on every ledger append. Cache
// failures are logged and bypassed; reads fall through to the database.
type TimelineService struct {
	tickets     repository.TicketRepository
	transitions repository.TransitionRepository
	cache       *persistence.Redis
	opts        timeline.Options
	ttl         time.Duration
	logger      *zap.Logger
}

// NewTimelineService constructs the service. A nil cache disables caching.
func NewTimelineService(tickets repository.TicketRepository, transitions repository.TransitionRepository, cache *persistence.Redis, opts timeline.Options, ttl time.Duration, logger *zap.Logger) *TimelineService {
	return &TimelineService{
		tickets:     tickets,
		transitions: transitions,
		cache:       cache,
		opts:        opts,
		ttl:         ttl,
		logger:      logger,
	}
}

// GetTimeline returns the annotated chronological timeline for a ticket.
func (s *TimelineService) GetTimeline(ctx context.Context, ticketID string) ([]timeline.Entry, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, apperrors.MapError(err)
	}

	if entries, ok := s.fromCache(ctx, ticketID); ok {
		return entries, nil
	}

	transitions, err := s.transitions.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	entries := timeline.Reconstruct(transitions, s.opts)
	s.toCache(ctx, ticketID, entries)
	return entries, nil
}

// Invalidate drops the cached timeline for a ticket.
func (s *TimelineService) Invalidate(ctx context.Context, ticketID string) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Client.Del(ctx, cacheKey(ticketID)).Err(); err != nil {
		s.logger.Warn("timeline cache invalidation failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TimelineService) fromCache(ctx context.Context, ticketID string) ([]timeline.Entry, bool) {
	if !s.cacheEnabled() {
		return nil, false
	}
	raw, err := s.cache.Client.Get(ctx, cacheKey(ticketID)).Bytes()
	if err != nil {
		return nil, false
	}
	var entries []timeline.Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		s.logger.Warn("timeline cache decode failed", zap.String("ticket_id", ticketID), zap.Error(err))
		return nil, false
	}
	return entries, true
}

func (s *TimelineService) toCache(ctx context.Context, ticketID string, entries []timeline.Entry) {
	if !s.cacheEnabled() {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := s.cache.Client.Set(ctx, cacheKey(ticketID), raw, s.ttl).Err(); err != nil {
		s.logger.Warn("timeline cache write failed", zap.String("ticket_id", ticketID), zap.Error(err))
	}
}

func (s *TimelineService) cacheEnabled() bool {
	return s.cache != nil && s.cache.Client != nil && s.ttl > 0
}

func cacheKey(ticketID string) string {
	return "timeline:" + ticketID
}
