package geometry

import (
	"compress/gzip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensampa/outage-map/internal/observability"
)

// Four small squares around central São Paulo, WGS-84 lon/lat. The two
// "Jardim" names exercise the substring tie-break.
const districtsGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"NM_DIST": "Bela Vista"},
      "geometry": {"type": "Polygon", "coordinates": [[
        [-46.66, -23.57], [-46.63, -23.57], [-46.63, -23.55],
        [-46.66, -23.55], [-46.66, -23.57]
      ]]}
    },
    {
      "type": "Feature",
      "properties": {"NM_DIST": "Vila Mariana"},
      "geometry": {"type": "Polygon", "coordinates": [[
        [-46.65, -23.60], [-46.62, -23.60], [-46.62, -23.58],
        [-46.65, -23.58], [-46.65, -23.60]
      ]]}
    },
    {
      "type": "Feature",
      "properties": {"NM_DIST": "Jardim Ângela"},
      "geometry": {"type": "Polygon", "coordinates": [[
        [-46.80, -23.72], [-46.75, -23.72], [-46.75, -23.68],
        [-46.80, -23.68], [-46.80, -23.72]
      ]]}
    },
    {
      "type": "Feature",
      "properties": {"NM_DIST": "Jardim São Luís"},
      "geometry": {"type": "Polygon", "coordinates": [[
        [-46.75, -23.70], [-46.70, -23.70], [-46.70, -23.66],
        [-46.75, -23.66], [-46.75, -23.70]
      ]]}
    },
    {
      "type": "Feature",
      "properties": {"note": "no name, must be skipped"},
      "geometry": {"type": "Polygon", "coordinates": [[
        [-46.50, -23.50], [-46.49, -23.50], [-46.49, -23.49],
        [-46.50, -23.49], [-46.50, -23.50]
      ]]}
    },
    {
      "type": "Feature",
      "properties": {"NM_DIST": "Ponto Isolado"},
      "geometry": {"type": "Point", "coordinates": [-46.60, -23.55]}
    }
  ]
}`

func writeDataset(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newTestStore(t *testing.T, archivePath, rawPath string) *Store {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStore(archivePath, rawPath, observability.NewMetricsForTesting(), logger)
}

func TestStore_LoadAndIndex(t *testing.T) {
	s := newTestStore(t, "", writeDataset(t, "districts.geojson", districtsGeoJSON))

	idx := s.Index()
	require.NotNil(t, idx)
	// Unnamed and non-polygon features are dropped.
	assert.Equal(t, 4, idx.Len())

	// Load-once: repeated access returns the same index.
	assert.Same(t, idx, s.Index())
}

func TestStore_MissingDataset(t *testing.T) {
	s := newTestStore(t, filepath.Join(t.TempDir(), "absent.gz"), filepath.Join(t.TempDir(), "absent.geojson"))

	assert.Nil(t, s.Index())
	_, ok := s.FindByName("Bela Vista")
	assert.False(t, ok)
	_, ok = s.FindByPoint(-23.56, -46.64)
	assert.False(t, ok)
}

func TestStore_MalformedDataset(t *testing.T) {
	s := newTestStore(t, "", writeDataset(t, "districts.geojson", "{not json"))
	assert.Nil(t, s.Index())
}

func TestStore_GzipArchivePreferred(t *testing.T) {
	path := filepath.Join(t.TempDir(), "districts.geojson.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(districtsGeoJSON))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	s := newTestStore(t, path, filepath.Join(t.TempDir(), "absent.geojson"))
	idx := s.Index()
	require.NotNil(t, idx)
	assert.Equal(t, 4, idx.Len())
}

func TestStore_FindByName(t *testing.T) {
	s := newTestStore(t, "", writeDataset(t, "districts.geojson", districtsGeoJSON))

	tests := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"exact", "Bela Vista", "Bela Vista", true},
		{"case and accent insensitive", "jardim ângela", "Jardim Ângela", true},
		{"accent stripped query", "JARDIM SAO LUIS", "Jardim São Luís", true},
		{"substring", "Mariana", "Vila Mariana", true},
		{"substring tie-break picks shortest", "Jardim", "Jardim Ângela", true},
		{"short query only matches exactly", "Vil", "", false},
		{"unknown", "Campo Limpo", "", false},
		{"blank", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := s.FindByName(tt.query)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, m.Name)
				assert.NotNil(t, m.Boundary)
			}
		})
	}
}

func TestStore_FindByNameCentroid(t *testing.T) {
	s := newTestStore(t, "", writeDataset(t, "districts.geojson", districtsGeoJSON))

	m, ok := s.FindByName("Bela Vista")
	require.True(t, ok)
	assert.InDelta(t, -23.56, m.Centroid.Lat, 0.001)
	assert.InDelta(t, -46.645, m.Centroid.Lon, 0.001)
}

func TestStore_FindByPoint(t *testing.T) {
	s := newTestStore(t, "", writeDataset(t, "districts.geojson", districtsGeoJSON))

	m, ok := s.FindByPoint(-23.56, -46.64)
	require.True(t, ok)
	assert.Equal(t, "Bela Vista", m.Name)

	m, ok = s.FindByPoint(-23.59, -46.63)
	require.True(t, ok)
	assert.Equal(t, "Vila Mariana", m.Name)

	// Open ocean.
	_, ok = s.FindByPoint(-25.0, -45.0)
	assert.False(t, ok)
}

func TestStore_ProjectedDatasetReprojected(t *testing.T) {
	// Same square expressed in UTM 23S metres with the legacy crs member.
	// The easting/northing pair 333257.7/7395524.4 maps to roughly
	// lon -46.633, lat -23.551.
	const projected = `{
      "type": "FeatureCollection",
      "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:EPSG::31983"}},
      "features": [
        {
          "type": "Feature",
          "properties": {"NM_DIST": "Sé"},
          "geometry": {"type": "Polygon", "coordinates": [[
            [332800.0, 7395000.0], [333800.0, 7395000.0], [333800.0, 7396000.0],
            [332800.0, 7396000.0], [332800.0, 7395000.0]
          ]]}
        }
      ]
    }`

	s := newTestStore(t, "", writeDataset(t, "districts.geojson", projected))
	idx := s.Index()
	require.NotNil(t, idx)

	m, ok := s.FindByName("Sé")
	require.True(t, ok)
	assert.InDelta(t, -46.633, m.Centroid.Lon, 0.05)
	assert.InDelta(t, -23.551, m.Centroid.Lat, 0.05)

	// Geographic point lookup works against the reprojected boundary.
	_, ok = s.FindByPoint(-23.551, -46.633)
	assert.True(t, ok)
}

func TestStore_DuplicateNamesFirstWins(t *testing.T) {
	const dup = `{
      "type": "FeatureCollection",
      "features": [
        {
          "type": "Feature",
          "properties": {"NM_DIST": "Lapa"},
          "geometry": {"type": "Polygon", "coordinates": [[
            [-46.71, -23.53], [-46.70, -23.53], [-46.70, -23.52],
            [-46.71, -23.52], [-46.71, -23.53]
          ]]}
        },
        {
          "type": "Feature",
          "properties": {"NM_DIST": "LAPA"},
          "geometry": {"type": "Polygon", "coordinates": [[
            [-46.60, -23.40], [-46.59, -23.40], [-46.59, -23.39],
            [-46.60, -23.39], [-46.60, -23.40]
          ]]}
        }
      ]
    }`

	s := newTestStore(t, "", writeDataset(t, "districts.geojson", dup))
	idx := s.Index()
	require.NotNil(t, idx)
	require.Equal(t, 1, idx.Len())

	m, ok := s.FindByName("Lapa")
	require.True(t, ok)
	assert.Equal(t, "Lapa", m.Name)
	assert.InDelta(t, -23.525, m.Centroid.Lat, 0.001)
}
