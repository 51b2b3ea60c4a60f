package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/matcher"
	"github.com/assassinoNz/CarShare-Server/internal/observability"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
	"github.com/assassinoNz/CarShare-Server/internal/routing"
	"github.com/assassinoNz/CarShare-Server/internal/tiles"
)

const (
	defaultScheduleWindow  = time.Hour
	defaultProximityRadius = 2000.0
	defaultConcurrency     = 8
)

// MatchingConfig tunes the candidate scan.
type MatchingConfig struct {
	ScheduleWindow        time.Duration
	ProximityRadiusMeters float64
	Concurrency           int
	// Timeout bounds a whole scan; zero means no limit beyond the caller's context.
	Timeout time.Duration
	// MaxRoutes caps the alternative routes compared in a match detail.
	MaxRoutes int
}

func (c MatchingConfig) withDefaults() MatchingConfig {
	if c.ScheduleWindow <= 0 {
		c.ScheduleWindow = defaultScheduleWindow
	}
	if c.ProximityRadiusMeters <= 0 {
		c.ProximityRadiusMeters = defaultProximityRadius
	}
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	return c
}

// MatchingService finds requested trips compatible with a hosted trip.
type MatchingService struct {
	hosted    repository.HostedTripRepository
	requested repository.RequestedTripRepository
	authz     Authorizer
	matcher   *matcher.RouteMatcher
	routes    routing.Provider
	cfg       MatchingConfig
	logger    *slog.Logger
}

// NewMatchingService creates a new MatchingService.
func NewMatchingService(
	hosted repository.HostedTripRepository,
	requested repository.RequestedTripRepository,
	authz Authorizer,
	routeMatcher *matcher.RouteMatcher,
	routes routing.Provider,
	cfg MatchingConfig,
	logger *slog.Logger,
) *MatchingService {
	return &MatchingService{
		hosted:    hosted,
		requested: requested,
		authz:     authz,
		matcher:   routeMatcher,
		routes:    routes,
		cfg:       cfg.withDefaults(),
		logger:    logger,
	}
}

// loadOwnHostedTrip authorizes the caller and returns the hosted trip it hosts.
func (s *MatchingService) loadOwnHostedTrip(ctx context.Context, callerID, hostedTripID string) (*domain.HostedTrip, error) {
	if _, err := s.authz.Authorize(ctx, callerID, domain.ActionRetrieveHostedTrip); err != nil {
		return nil, err
	}
	hosted, err := s.hosted.GetByID(ctx, hostedTripID)
	if err != nil {
		return nil, storeError("get hosted trip", err)
	}
	if hosted.HostID != callerID {
		return nil, &domain.AuthorizationError{
			CallerID: callerID,
			Action:   "match hosted trip " + hosted.ID,
			Reason:   "only the host may search for matches",
		}
	}
	return hosted, nil
}

// FindMatches returns the requested trips that pass every filter against the
// hosted trip. Candidates are screened in parallel; the result keeps the
// order of the candidate pool. A candidate whose geometry query fails is
// left out and logged.
func (s *MatchingService) FindMatches(ctx context.Context, callerID, hostedTripID string) ([]*domain.RequestedTrip, error) {
	hosted, err := s.loadOwnHostedTrip(ctx, callerID, hostedTripID)
	if err != nil {
		return nil, err
	}
	if hosted.HasEnded() {
		return nil, &domain.TripStateError{Kind: "hosted trip", TripID: hosted.ID, Reason: "already ended"}
	}

	observability.MatchScans.Inc()
	start := time.Now()
	defer func() { observability.MatchLatency.Observe(time.Since(start).Seconds()) }()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	schedule := hosted.Time.Schedule
	pool, err := s.requested.ListScheduledBetween(ctx,
		schedule.Add(-s.cfg.ScheduleWindow), schedule.Add(s.cfg.ScheduleWindow), hosted.HostID)
	if err != nil {
		return nil, storeError("list requested trips", err)
	}

	matched := make([]bool, len(pool))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, candidate := range pool {
		g.Go(func() error {
			outcome, err := s.screen(gctx, hosted, candidate)
			observability.MatchCandidates.WithLabelValues(outcome).Inc()
			if err != nil {
				s.logger.WarnContext(gctx, "candidate excluded",
					"hosted_trip_id", hosted.ID,
					"candidate_id", candidate.ID,
					"outcome", outcome,
					"err", err,
				)
				return nil
			}
			matched[i] = outcome == observability.OutcomeMatched
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, domain.Upstream("matching", "scan", err)
	}

	var out []*domain.RequestedTrip
	for i, ok := range matched {
		if ok {
			out = append(out, pool[i])
		}
	}

	s.logger.InfoContext(ctx, "matching scan finished",
		"hosted_trip_id", hosted.ID,
		"candidates", len(pool),
		"matches", len(out),
	)
	return out, nil
}

// screen runs the filter chain for one candidate, cheapest checks first.
// It returns the outcome label; an error means the candidate could not be
// evaluated.
func (s *MatchingService) screen(ctx context.Context, hosted *domain.HostedTrip, candidate *domain.RequestedTrip) (string, error) {
	if candidate.HasEnded() {
		return observability.OutcomeEnded, nil
	}
	if hosted.RemainingSeats < candidate.Seats {
		return observability.OutcomeSeats, nil
	}

	overlap, err := tiles.MightOverlap(hosted.Route.Overlap, candidate.Route.Overlap)
	if err != nil {
		if errors.Is(err, tiles.ErrGridVersionMismatch) {
			s.logger.DebugContext(ctx, "candidate indexed on another grid version",
				"hosted_trip_id", hosted.ID,
				"candidate_id", candidate.ID,
				"hosted_grid_version", hosted.Route.Overlap.GridVersion,
				"candidate_grid_version", candidate.Route.Overlap.GridVersion,
			)
			return observability.OutcomeStale, nil
		}
		return observability.OutcomeTiles, err
	}
	if !overlap {
		return observability.OutcomeTiles, nil
	}

	if !candidate.Features.SatisfiedBy(hosted.Features()) {
		return observability.OutcomeFeatures, nil
	}

	for _, c := range candidate.Route.KeyCoords {
		near, err := s.matcher.IsWithinProximity(ctx, c, s.cfg.ProximityRadiusMeters, hosted.Route.Polylines)
		if err != nil {
			return observability.OutcomeUpstream, err
		}
		if !near {
			return observability.OutcomeProximity, nil
		}
	}

	return observability.OutcomeMatched, nil
}

// RouteMatch is the overlap of the hosted route with one candidate route of
// the requested trip.
type RouteMatch struct {
	Polylines []string        `json:"polylines"`
	Result    *matcher.Result `json:"result"`
}

// MatchDetail describes how a requested trip fits a hosted trip.
type MatchDetail struct {
	HostedTripID    string            `json:"hostedTripId"`
	RequestedTripID string            `json:"requestedTripId"`
	Routes          []RouteMatch      `json:"routes"`
	Pickup          domain.Coordinate `json:"pickup"`
	Dropoff         domain.Coordinate `json:"dropoff"`
}

// MatchDetail measures the hosted route against every candidate route of
// the requested trip and proposes pickup and drop-off points.
func (s *MatchingService) MatchDetail(ctx context.Context, callerID, hostedTripID, requestedTripID string) (*MatchDetail, error) {
	hosted, err := s.loadOwnHostedTrip(ctx, callerID, hostedTripID)
	if err != nil {
		return nil, err
	}
	requested, err := s.requested.GetByID(ctx, requestedTripID)
	if err != nil {
		return nil, storeError("get requested trip", err)
	}

	routes, err := s.routes.Routes(ctx, requested.Route.KeyCoords)
	if err != nil {
		return nil, domain.Upstream("routing", "routes", err)
	}

	detail := &MatchDetail{HostedTripID: hosted.ID, RequestedTripID: requested.ID}
	for _, polylines := range routing.PolylineSets(routes, s.cfg.MaxRoutes) {
		res, err := s.matcher.Match(ctx, hosted.Route.Polylines, polylines)
		if err != nil {
			return nil, err
		}
		detail.Routes = append(detail.Routes, RouteMatch{Polylines: polylines, Result: res})
	}

	coords := requested.Route.KeyCoords
	if detail.Pickup, err = s.matcher.ClosestPoint(ctx, coords[0], hosted.Route.Polylines); err != nil {
		return nil, err
	}
	if detail.Dropoff, err = s.matcher.ClosestPoint(ctx, coords[len(coords)-1], hosted.Route.Polylines); err != nil {
		return nil, err
	}

	return detail, nil
}
