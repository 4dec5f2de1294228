// Package geometry loads the São Paulo district boundary dataset and indexes
// it for lookup by normalized name and by containing point.
//
// The dataset is loaded at most once per process. A missing or unparseable
// dataset is logged and yields a store that never matches; callers degrade to
// point-only rendering, never fail.
package geometry

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/observability"
)

// minQueryLen guards substring matching against spurious short-string hits
// ("SÉ" would otherwise match half the dataset).
const minQueryLen = 4

// nameProperties are the feature-name columns tried in preference order,
// covering IBGE and GeoSampa export conventions.
var nameProperties = []string{"NM_DIST", "NOME_DIST", "NOME", "name"}

// District is one boundary feature: immutable after index construction.
type District struct {
	Name     string
	Boundary orb.Geometry // Polygon or MultiPolygon, WGS-84 lon/lat
	Centroid domain.Coordinate

	normalized string
	rect       rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (d *District) Bounds() *rtreego.Rect { return &d.rect }

// Index is the immutable, fully built district index.
type Index struct {
	byName map[string]*District
	names  []string // normalized names sorted by length then lexically
	tree   *rtreego.Rtree
}

// Len returns the number of indexed districts.
func (i *Index) Len() int { return len(i.byName) }

// Districts returns the indexed districts in deterministic (sorted) order.
func (i *Index) Districts() []*District {
	out := make([]*District, 0, len(i.names))
	for _, n := range i.names {
		out = append(out, i.byName[n])
	}
	return out
}

// Store owns the load-once lifecycle of the district index. It implements
// domain.DistrictLocator; before the first lookup nothing is parsed, after a
// failed load every lookup misses.
type Store struct {
	paths   []string
	metrics *observability.Metrics
	logger  *slog.Logger

	once  sync.Once
	index *Index // nil when no dataset could be loaded
}

// NewStore creates a store that tries archivePath first, then rawPath.
func NewStore(archivePath, rawPath string, metrics *observability.Metrics, logger *slog.Logger) *Store {
	var paths []string
	for _, p := range []string{archivePath, rawPath} {
		if p != "" {
			paths = append(paths, p)
		}
	}
	return &Store{paths: paths, metrics: metrics, logger: logger}
}

// Index returns the cached district index, loading it on first access.
// Returns nil when no dataset could be loaded; callers must treat that as
// "no polygons available", never as fatal.
func (s *Store) Index() *Index {
	s.once.Do(s.load)
	return s.index
}

func (s *Store) load() {
	for _, path := range s.paths {
		idx, err := loadIndex(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				s.logger.Debug("district dataset not present", "path", path)
			} else {
				s.logger.Warn("district dataset unusable", "path", path, "error", err)
			}
			continue
		}
		s.index = idx
		s.metrics.GeometryIndexReady.Set(1)
		s.logger.Info("district index ready", "path", path, "districts", idx.Len())
		return
	}
	s.metrics.GeometryIndexReady.Set(0)
	s.logger.Warn("no district dataset found, polygon rendering disabled", "paths", strings.Join(s.paths, ", "))
}

// FindByName matches a district by normalized name: exact first, then
// substring containment for queries of at least minQueryLen runes. Among
// several substring hits the shortest indexed name wins, so the match is
// deterministic and the least speculative superset.
func (s *Store) FindByName(name string) (domain.DistrictMatch, bool) {
	idx := s.Index()
	if idx == nil {
		return domain.DistrictMatch{}, false
	}

	q := domain.Normalize(strings.TrimSpace(name))
	if q == "" {
		return domain.DistrictMatch{}, false
	}

	if d, ok := idx.byName[q]; ok {
		s.metrics.GeometryLookups.WithLabelValues("name", "hit").Inc()
		return match(d), true
	}

	if len([]rune(q)) >= minQueryLen {
		for _, n := range idx.names {
			if strings.Contains(n, q) {
				s.metrics.GeometryLookups.WithLabelValues("name", "hit").Inc()
				return match(idx.byName[n]), true
			}
		}
	}

	s.metrics.GeometryLookups.WithLabelValues("name", "miss").Inc()
	return domain.DistrictMatch{}, false
}

// FindByPoint returns the district whose boundary contains the point.
func (s *Store) FindByPoint(lat, lon float64) (domain.DistrictMatch, bool) {
	idx := s.Index()
	if idx == nil {
		return domain.DistrictMatch{}, false
	}

	p := orb.Point{lon, lat}
	probe := rtreego.Point{lon, lat}.ToRect(1e-9)
	for _, spatial := range idx.tree.SearchIntersect(probe) {
		d := spatial.(*District)
		if boundaryContains(d.Boundary, p) {
			s.metrics.GeometryLookups.WithLabelValues("point", "hit").Inc()
			return match(d), true
		}
	}

	s.metrics.GeometryLookups.WithLabelValues("point", "miss").Inc()
	return domain.DistrictMatch{}, false
}

func match(d *District) domain.DistrictMatch {
	return domain.DistrictMatch{Name: d.Name, Centroid: d.Centroid, Boundary: d.Boundary}
}

func boundaryContains(g orb.Geometry, p orb.Point) bool {
	switch geom := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(geom, p)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(geom, p)
	default:
		return false
	}
}

// loadIndex reads and fully builds an index from one dataset file.
func loadIndex(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open archive: %w", err)
		}
		defer gz.Close()
		r = gz
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("parse geojson: %w", err)
	}

	projected := declaresProjectedCRS(data)

	idx := &Index{
		byName: make(map[string]*District, len(fc.Features)),
		tree:   rtreego.NewTree(2, 25, 50),
	}
	for _, feat := range fc.Features {
		d, ok := buildDistrict(feat, projected)
		if !ok {
			continue
		}
		// First occurrence of a name wins; duplicates are dataset noise.
		if _, dup := idx.byName[d.normalized]; dup {
			continue
		}
		idx.byName[d.normalized] = d
		idx.names = append(idx.names, d.normalized)
		idx.tree.Insert(d)
	}
	if len(idx.byName) == 0 {
		return nil, errors.New("dataset contains no named polygon features")
	}

	// Shortest-name-first ordering makes the substring tie-break a plain
	// linear scan.
	sort.Slice(idx.names, func(a, b int) bool {
		if len(idx.names[a]) != len(idx.names[b]) {
			return len(idx.names[a]) < len(idx.names[b])
		}
		return idx.names[a] < idx.names[b]
	})
	return idx, nil
}

func buildDistrict(feat *geojson.Feature, projected bool) (*District, bool) {
	name := featureName(feat)
	if name == "" {
		return nil, false
	}

	geom := feat.Geometry
	switch geom.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return nil, false
	}
	if projected {
		geom = reprojectGeometry(geom)
	}

	centroid, _ := planar.CentroidArea(geom)
	bound := geom.Bound()
	rect, err := rtreego.NewRect(
		rtreego.Point{bound.Min[0], bound.Min[1]},
		[]float64{span(bound.Max[0] - bound.Min[0]), span(bound.Max[1] - bound.Min[1])},
	)
	if err != nil {
		return nil, false
	}

	return &District{
		Name:       name,
		Boundary:   geom,
		Centroid:   domain.Coordinate{Lat: centroid[1], Lon: centroid[0]},
		normalized: domain.Normalize(name),
		rect:       *rect,
	}, true
}

// span keeps rtree rectangle lengths strictly positive for degenerate bounds.
func span(v float64) float64 {
	if v <= 0 {
		return 1e-9
	}
	return v
}

func featureName(feat *geojson.Feature) string {
	for _, key := range nameProperties {
		if v, ok := feat.Properties[key].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// declaresProjectedCRS detects the legacy GeoJSON crs member naming
// EPSG:31983. Datasets without a crs member are assumed geographic
// (RFC 7946 mandates WGS-84; SIRGAS 2000 geographic is indistinguishable at
// this fidelity).
func declaresProjectedCRS(data []byte) bool {
	var meta struct {
		CRS struct {
			Properties struct {
				Name string `json:"name"`
			} `json:"properties"`
		} `json:"crs"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return false
	}
	return strings.Contains(meta.CRS.Properties.Name, "31983")
}

// reprojectGeometry converts projected UTM 23S coordinates to geographic
// lon/lat in place.
func reprojectGeometry(g orb.Geometry) orb.Geometry {
	switch geom := g.(type) {
	case orb.Polygon:
		reprojectPolygon(geom)
		return geom
	case orb.MultiPolygon:
		for _, poly := range geom {
			reprojectPolygon(poly)
		}
		return geom
	default:
		return g
	}
}

func reprojectPolygon(poly orb.Polygon) {
	for _, ring := range poly {
		for i, pt := range ring {
			lon, lat := utm23SToLonLat(pt[0], pt[1])
			ring[i] = orb.Point{lon, lat}
		}
	}
}
