// Package service orchestrates the submission workflow: validate, resolve,
// rate-limit, record, publish.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/observability"
	"github.com/opensampa/outage-map/internal/store"
)

// Publisher emits accepted reports to an external sink. Failures are
// absorbed; publishing never fails a submission.
type Publisher interface {
	Publish(ctx context.Context, report domain.Report) error
}

// Service is the reporting workflow behind the HTTP API.
type Service struct {
	resolver  *domain.Resolver
	store     *store.Store
	districts domain.DistrictLocator // nil disables choropleth polygons
	publisher Publisher              // nil disables publishing
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New wires the reporting service. districts and publisher may be nil.
func New(resolver *domain.Resolver, st *store.Store, districts domain.DistrictLocator, publisher Publisher, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		resolver:  resolver,
		store:     st,
		districts: districts,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
	}
}

// Submit validates and records one outage report for a session.
func (s *Service) Submit(ctx context.Context, sessionID, cep, incidentType string) (domain.Report, error) {
	typ, err := domain.ParseIncidentType(incidentType)
	if err != nil {
		s.metrics.ReportsSubmitted.WithLabelValues("unknown", "invalid").Inc()
		return domain.Report{}, err
	}

	res, err := s.resolver.Resolve(ctx, cep)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCEP):
			s.metrics.ReportsSubmitted.WithLabelValues(string(typ), "invalid").Inc()
		case errors.Is(err, domain.ErrNoCoverage):
			s.metrics.Resolutions.WithLabelValues(string(domain.SourceFallback), "miss").Inc()
			s.metrics.ReportsSubmitted.WithLabelValues(string(typ), "no_coverage").Inc()
		}
		return domain.Report{}, err
	}
	s.metrics.Resolutions.WithLabelValues(string(res.Source), "hit").Inc()

	report, err := s.store.Add(sessionID, res, typ)
	if err != nil {
		s.metrics.ReportsSubmitted.WithLabelValues(string(typ), "rate_limited").Inc()
		return domain.Report{}, err
	}
	s.metrics.ReportsSubmitted.WithLabelValues(string(typ), "accepted").Inc()
	s.metrics.ReportsStored.Set(float64(s.store.Len()))

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, report); err != nil {
			s.metrics.PublishErrors.Inc()
			s.logger.Warn("report publish failed", "report_id", report.ID, "error", err)
		}
	}

	s.logger.Info("report accepted",
		"report_id", report.ID,
		"district", report.District,
		"zone", report.Zone,
		"incident_type", report.IncidentType,
		"source", report.Source,
	)
	return report, nil
}

// Rankings returns the current per-district aggregation, most affected first.
func (s *Service) Rankings() []store.DistrictCount {
	return s.store.Aggregate()
}

// Choropleth renders the current aggregation as a GeoJSON FeatureCollection.
// Districts with boundary polygons become polygon features; the rest become
// point features at their last reported coordinate, so the map always has
// something to draw. Intensity is total/max in (0, 1].
func (s *Service) Choropleth() *geojson.FeatureCollection {
	rows := s.store.Aggregate()

	maxTotal := 0
	for _, row := range rows {
		if row.Total > maxTotal {
			maxTotal = row.Total
		}
	}

	fc := geojson.NewFeatureCollection()
	for _, row := range rows {
		var feat *geojson.Feature
		if s.districts != nil {
			if m, ok := s.districts.FindByName(row.District); ok {
				feat = geojson.NewFeature(m.Boundary)
			}
		}
		if feat == nil {
			feat = geojson.NewFeature(orb.Point{row.Coordinate.Lon, row.Coordinate.Lat})
		}
		feat.Properties = geojson.Properties{
			"district":  row.District,
			"zone":      row.Zone,
			"no_power":  row.NoPower,
			"no_water":  row.NoWater,
			"reports":   row.Total,
			"intensity": float64(row.Total) / float64(maxTotal),
		}
		fc.Append(feat)
	}
	return fc
}

// CheckReadiness reports whether the service can accept traffic. The store
// is memory-backed and the geometry tier is optional, so a wired service is
// always ready.
func (s *Service) CheckReadiness(_ context.Context) error {
	if s.resolver == nil {
		return errors.New("resolver not configured")
	}
	return nil
}
