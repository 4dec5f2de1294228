package domain

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/paulmach/orb"
)

// Source identifies which data tier produced a resolution.
type Source string

const (
	// SourceStatic means the curated coverage table resolved the CEP.
	SourceStatic Source = "static"
	// SourceFallback means the external national API resolved the CEP.
	SourceFallback Source = "fallback"
)

// ResolutionResult is the unified outcome of a CEP resolution. Produced fresh
// per call and owned by the caller; Boundary is nil when only point data is
// available.
type ResolutionResult struct {
	CEP        string
	District   string
	Zone       string
	City       string
	RegionCode string
	Lat        float64
	Lon        float64
	Boundary   orb.Geometry
	Source     Source
}

// HasBoundary reports whether the result carries polygon geometry.
func (r ResolutionResult) HasBoundary() bool {
	return r.Boundary != nil
}

// DistrictMatch is a boundary feature matched by name or containing point.
type DistrictMatch struct {
	Name     string
	Centroid Coordinate
	Boundary orb.Geometry
}

// DistrictLocator looks up district boundary features. A nil locator, or one
// backed by a dataset that failed to load, simply never matches; callers
// degrade to point-only results.
type DistrictLocator interface {
	// FindByName matches a district by normalized name, exact first, then
	// substring containment.
	FindByName(name string) (DistrictMatch, bool)

	// FindByPoint returns the district whose boundary contains the point.
	FindByPoint(lat, lon float64) (DistrictMatch, bool)
}

// FallbackAddress is the point-only data returned by the external CEP
// service for codes outside static coverage.
type FallbackAddress struct {
	Neighborhood string
	City         string
	State        string
	Lat          float64
	Lon          float64
}

// HasCoordinates reports whether the address carries usable coordinates.
// Zero coordinates are the service's way of saying "no data".
func (a *FallbackAddress) HasCoordinates() bool {
	return a != nil && (a.Lat != 0 || a.Lon != 0)
}

// CEPFallback queries an external national CEP service. Implementations must
// honor the context deadline; a timeout is equivalent to "not found".
type CEPFallback interface {
	Lookup(ctx context.Context, cep string) (*FallbackAddress, error)
}

// Resolver turns a CEP into a ResolutionResult using the three-tier strategy
// described in the package documentation.
type Resolver struct {
	table     *CoverageTable
	districts DistrictLocator // nil disables geometry augmentation
	fallback  CEPFallback     // nil disables tier 2
	logger    *slog.Logger
}

// NewResolver wires a resolver. districts and fallback may be nil; the
// resolver then degrades to point-only results and table-only coverage
// respectively.
func NewResolver(table *CoverageTable, districts DistrictLocator, fallback CEPFallback, logger *slog.Logger) *Resolver {
	return &Resolver{
		table:     table,
		districts: districts,
		fallback:  fallback,
		logger:    logger,
	}
}

// Resolve maps a CEP to a district. Returns ErrInvalidCEP for malformed
// input and ErrNoCoverage when neither the static table nor the external
// fallback can place the code; every other failure mode degrades silently.
func (r *Resolver) Resolve(ctx context.Context, cep string) (ResolutionResult, error) {
	clean, err := CleanCEP(cep)
	if err != nil {
		return ResolutionResult{}, err
	}

	// The leading five digits are the geographic bucket key.
	prefix, err := strconv.Atoi(clean[:5])
	if err != nil {
		return ResolutionResult{}, ErrInvalidCEP
	}

	if iv, ok := r.table.Lookup(prefix); ok {
		return r.resolveStatic(clean, iv), nil
	}
	return r.resolveFallback(ctx, clean)
}

// resolveStatic builds a tier-1 result and augments it with geometry when the
// boundary dataset has a matching feature.
func (r *Resolver) resolveStatic(cep string, iv CoverageInterval) ResolutionResult {
	res := ResolutionResult{
		CEP:        cep,
		District:   iv.District,
		Zone:       iv.Zone,
		City:       "São Paulo",
		RegionCode: "SP",
		Source:     SourceStatic,
	}

	if r.districts != nil {
		if m, ok := r.districts.FindByName(iv.District); ok {
			res.Lat = m.Centroid.Lat
			res.Lon = m.Centroid.Lon
			res.Boundary = m.Boundary
			return res
		}
		r.logger.Debug("no boundary for district, using fallback coordinate", "district", iv.District)
	}

	fb := r.table.Fallback()
	res.Lat = fb.Lat
	res.Lon = fb.Lon
	return res
}

// resolveFallback delegates to the external service. Any failure, and any
// response without coordinates, collapses to ErrNoCoverage.
func (r *Resolver) resolveFallback(ctx context.Context, cep string) (ResolutionResult, error) {
	if r.fallback == nil {
		return ResolutionResult{}, ErrNoCoverage
	}

	addr, err := r.fallback.Lookup(ctx, cep)
	if err != nil {
		r.logger.Warn("cep fallback lookup failed", "cep", cep, "error", err)
		return ResolutionResult{}, ErrNoCoverage
	}
	if !addr.HasCoordinates() {
		return ResolutionResult{}, ErrNoCoverage
	}

	res := ResolutionResult{
		CEP:        cep,
		District:   addr.Neighborhood,
		Zone:       composeZone(addr.City, addr.State),
		City:       addr.City,
		RegionCode: addr.State,
		Lat:        addr.Lat,
		Lon:        addr.Lon,
		Source:     SourceFallback,
	}
	if res.District == "" {
		res.District = addr.City
	}

	// A fallback point inside a known district boundary is attributed to
	// that district; the result stays point-only regardless.
	if r.districts != nil {
		if m, ok := r.districts.FindByPoint(addr.Lat, addr.Lon); ok {
			res.District = m.Name
		}
	}
	return res, nil
}

func composeZone(city, state string) string {
	switch {
	case city == "" && state == "":
		return ""
	case city == "":
		return state
	case state == "":
		return city
	default:
		return city + " / " + state
	}
}
