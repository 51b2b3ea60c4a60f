package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/assassinoNz/CarShare-Server/internal/domain"
	"github.com/assassinoNz/CarShare-Server/internal/observability"
	"github.com/assassinoNz/CarShare-Server/internal/repository"
	"github.com/assassinoNz/CarShare-Server/internal/routing"
)

// TripService creates hosted and requested trips together with their tile
// bitmasks and drives the host side of the hosted trip lifecycle.
type TripService struct {
	hosted    repository.HostedTripRepository
	requested repository.RequestedTripRepository
	vehicles  repository.VehicleRepository
	authz     Authorizer
	routes    routing.Provider
	indexes   IndexSource
	maxRoutes int
	logger    *slog.Logger
	now       func() time.Time
}

// NewTripService creates a new TripService.
func NewTripService(
	hosted repository.HostedTripRepository,
	requested repository.RequestedTripRepository,
	vehicles repository.VehicleRepository,
	authz Authorizer,
	routes routing.Provider,
	indexes IndexSource,
	maxRoutes int,
	logger *slog.Logger,
) *TripService {
	return &TripService{
		hosted:    hosted,
		requested: requested,
		vehicles:  vehicles,
		authz:     authz,
		routes:    routes,
		indexes:   indexes,
		maxRoutes: maxRoutes,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateHostedTripRequest contains the parameters for offering a ride.
type CreateHostedTripRequest struct {
	CallerID  string
	From      string
	To        string
	KeyCoords []domain.Coordinate
	// Polylines is the route the host will drive. When empty, the first
	// route returned by the route provider is used.
	Polylines []string
	VehicleID string
	Vehicle   *domain.Vehicle
	Seats     int
	Billing   domain.Billing
	Schedule  time.Time
}

// CreateRequestedTripRequest contains the parameters for requesting a ride.
type CreateRequestedTripRequest struct {
	CallerID  string
	From      string
	To        string
	KeyCoords []domain.Coordinate
	Seats     int
	Features  domain.FeatureRequirements
	Schedule  time.Time
}

func validateTripBasics(box domain.BoundingBox, coords []domain.Coordinate, seats int, schedule time.Time) error {
	if err := box.ValidateCoordinates("route.keyCoords", coords, 2); err != nil {
		return err
	}
	if seats <= 0 {
		return domain.NewValidationError("seats", "must be positive, got %d", seats)
	}
	if schedule.IsZero() {
		return domain.NewValidationError("time.schedule", "is required")
	}
	return nil
}

// CreateHostedTrip validates and stores a hosted trip with the bitmask of its route.
func (s *TripService) CreateHostedTrip(ctx context.Context, req CreateHostedTripRequest) (*domain.HostedTrip, error) {
	if _, err := s.authz.Authorize(ctx, req.CallerID, domain.ActionCreateHostedTrip); err != nil {
		return nil, err
	}

	idx, err := s.indexes.ActiveIndex(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateTripBasics(idx.Grid().BoundingBox, req.KeyCoords, req.Seats, req.Schedule); err != nil {
		return nil, err
	}
	if req.Billing.PriceFirstKm < 0 || req.Billing.PriceNextKm < 0 {
		return nil, domain.NewValidationError("billing", "prices must not be negative")
	}

	vehicle, err := s.resolveVehicle(ctx, req.CallerID, req.VehicleID, req.Vehicle)
	if err != nil {
		return nil, err
	}

	polylines := req.Polylines
	if len(polylines) == 0 {
		routes, err := s.fetchRoutes(ctx, req.KeyCoords)
		if err != nil {
			return nil, err
		}
		polylines = routes[0].Polylines()
	}

	overlap, err := s.computeBitmask(func() (domain.TileOverlap, error) {
		return idx.ComputeBitmask(ctx, polylines)
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	trip := &domain.HostedTrip{
		ID:        uuid.New().String(),
		HostID:    req.CallerID,
		VehicleID: req.VehicleID,
		Vehicle:   vehicle,
		Route: domain.HostedRoute{
			From:      req.From,
			To:        req.To,
			KeyCoords: req.KeyCoords,
			Polylines: polylines,
			Overlap:   overlap,
		},
		Seats:          req.Seats,
		RemainingSeats: req.Seats,
		Billing:        req.Billing,
		Time:           domain.TripTime{Schedule: req.Schedule},
		CreatedAt:      now,
	}

	if err := s.hosted.Create(ctx, trip); err != nil {
		return nil, storeError("create hosted trip", err)
	}

	s.logger.InfoContext(ctx, "hosted trip created",
		"hosted_trip_id", trip.ID,
		"host_id", trip.HostID,
		"grid_version", overlap.GridVersion,
		"tiles", overlap.Mask.Count(),
	)
	return trip, nil
}

// CreateRequestedTrip validates and stores a requested trip. Its bitmask is
// the union over every route the provider offers between the waypoints.
func (s *TripService) CreateRequestedTrip(ctx context.Context, req CreateRequestedTripRequest) (*domain.RequestedTrip, error) {
	if _, err := s.authz.Authorize(ctx, req.CallerID, domain.ActionCreateRequestedTrip); err != nil {
		return nil, err
	}

	idx, err := s.indexes.ActiveIndex(ctx)
	if err != nil {
		return nil, err
	}
	if err := validateTripBasics(idx.Grid().BoundingBox, req.KeyCoords, req.Seats, req.Schedule); err != nil {
		return nil, err
	}

	routes, err := s.fetchRoutes(ctx, req.KeyCoords)
	if err != nil {
		return nil, err
	}

	overlap, err := s.computeBitmask(func() (domain.TileOverlap, error) {
		return idx.ComputeCombined(ctx, routing.PolylineSets(routes, s.maxRoutes))
	})
	if err != nil {
		return nil, err
	}

	trip := &domain.RequestedTrip{
		ID:          uuid.New().String(),
		RequesterID: req.CallerID,
		Route: domain.RequestedRoute{
			From:      req.From,
			To:        req.To,
			KeyCoords: req.KeyCoords,
			Overlap:   overlap,
		},
		Seats:     req.Seats,
		Features:  req.Features,
		Time:      domain.TripTime{Schedule: req.Schedule},
		CreatedAt: s.now(),
	}

	if err := s.requested.Create(ctx, trip); err != nil {
		return nil, storeError("create requested trip", err)
	}

	s.logger.InfoContext(ctx, "requested trip created",
		"requested_trip_id", trip.ID,
		"requester_id", trip.RequesterID,
		"routes", len(routes),
		"tiles", overlap.Mask.Count(),
	)
	return trip, nil
}

func (s *TripService) computeBitmask(compute func() (domain.TileOverlap, error)) (domain.TileOverlap, error) {
	start := time.Now()
	overlap, err := compute()
	observability.TileBitmaskLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return domain.TileOverlap{}, err
	}
	return overlap, nil
}

func (s *TripService) fetchRoutes(ctx context.Context, coords []domain.Coordinate) ([]routing.Route, error) {
	routes, err := s.routes.Routes(ctx, coords)
	if err != nil {
		return nil, domain.Upstream("routing", "routes", err)
	}
	if len(routes) == 0 {
		return nil, domain.NewValidationError("route.keyCoords", "no drivable route between the waypoints")
	}
	return routes, nil
}

// resolveVehicle returns the vehicle snapshot stored with a hosted trip:
// either a registered vehicle of the caller or an ad-hoc one.
func (s *TripService) resolveVehicle(ctx context.Context, callerID, vehicleID string, adHoc *domain.Vehicle) (*domain.Vehicle, error) {
	switch {
	case vehicleID != "" && adHoc != nil:
		return nil, domain.NewValidationError("vehicle", "give either vehicleId or vehicle, not both")
	case vehicleID == "" && adHoc == nil:
		return nil, domain.NewValidationError("vehicle", "vehicleId or vehicle is required")
	case adHoc != nil:
		v := *adHoc
		v.ID = ""
		v.OwnerID = callerID
		v.IsActive = true
		return &v, nil
	}

	v, err := s.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		return nil, storeError("get vehicle", err)
	}
	if v.OwnerID != callerID {
		return nil, &domain.AuthorizationError{CallerID: callerID, Action: "use vehicle " + vehicleID, Reason: "vehicle belongs to another user"}
	}
	if !v.IsActive {
		return nil, domain.NewValidationError("vehicleId", "vehicle %s is not active", vehicleID)
	}
	return v, nil
}

// GetHostedTrip retrieves a hosted trip.
func (s *TripService) GetHostedTrip(ctx context.Context, callerID, id string) (*domain.HostedTrip, error) {
	if _, err := s.authz.Authorize(ctx, callerID, domain.ActionRetrieveHostedTrip); err != nil {
		return nil, err
	}
	trip, err := s.hosted.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get hosted trip", err)
	}
	return trip, nil
}

// GetRequestedTrip retrieves a requested trip.
func (s *TripService) GetRequestedTrip(ctx context.Context, callerID, id string) (*domain.RequestedTrip, error) {
	if _, err := s.authz.Authorize(ctx, callerID, domain.ActionRetrieveRequestedTrip); err != nil {
		return nil, err
	}
	trip, err := s.requested.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get requested trip", err)
	}
	return trip, nil
}

// UpdateHostedTripStateRequest contains the parameters for starting or ending a hosted trip.
type UpdateHostedTripStateRequest struct {
	CallerID     string
	HostedTripID string
	State        domain.HostedTripState
	Coordinate   domain.Coordinate
}

// UpdateHostedTripState records the start or end of a hosted trip. Only the
// host may do it; a trip starts once and ends once, after starting.
func (s *TripService) UpdateHostedTripState(ctx context.Context, req UpdateHostedTripStateRequest) (*domain.HostedTrip, error) {
	if _, err := s.authz.Authorize(ctx, req.CallerID, domain.ActionUpdateHostedTrip); err != nil {
		return nil, err
	}

	trip, err := s.hosted.GetByID(ctx, req.HostedTripID)
	if err != nil {
		return nil, storeError("get hosted trip", err)
	}
	if trip.HostID != req.CallerID {
		return nil, &domain.AuthorizationError{
			CallerID: req.CallerID,
			Action:   "update hosted trip " + trip.ID,
			Reason:   "only the host may change the trip state",
		}
	}

	idx, err := s.indexes.ActiveIndex(ctx)
	if err != nil {
		return nil, err
	}
	if err := idx.Grid().BoundingBox.ValidateCoordinate("coordinate", req.Coordinate); err != nil {
		return nil, err
	}

	conflict := func(reason string) error {
		return &domain.TripStateError{Kind: "hosted trip", TripID: trip.ID, Reason: reason}
	}
	switch req.State {
	case domain.HostedTripStateStarted:
		if trip.HasStarted() {
			return nil, conflict("already started")
		}
	case domain.HostedTripStateEnded:
		if !trip.HasStarted() {
			return nil, conflict("not started")
		}
		if trip.HasEnded() {
			return nil, conflict("already ended")
		}
	default:
		return nil, domain.NewValidationError("state", "must be STARTED or ENDED, got %q", req.State)
	}

	if err := s.hosted.UpdateState(ctx, trip.ID, req.State, s.now(), req.Coordinate); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, conflict("changed concurrently")
		}
		return nil, storeError("update hosted trip state", err)
	}

	s.logger.InfoContext(ctx, "hosted trip state changed", "hosted_trip_id", trip.ID, "state", req.State)

	updated, err := s.hosted.GetByID(ctx, trip.ID)
	if err != nil {
		return nil, storeError("get hosted trip", err)
	}
	return updated, nil
}
