package domain

// CoverageInterval maps a closed range of 5-digit CEP prefixes to a curated
// district and administrative zone.
type CoverageInterval struct {
	MinPrefix int
	MaxPrefix int
	District  string
	Zone      string
}

// Coordinate is a WGS-84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// CoverageTable is an ordered set of non-overlapping prefix intervals plus a
// single fixed fallback coordinate used when no polygon is available for a
// matched district. Immutable after construction.
type CoverageTable struct {
	intervals []CoverageInterval
	fallback  Coordinate
}

// NewCoverageTable builds a table from authored intervals. Intervals must be
// ordered and non-overlapping; that is a data-authoring invariant checked by
// cmd/datacheck, not enforced here.
func NewCoverageTable(intervals []CoverageInterval, fallback Coordinate) *CoverageTable {
	return &CoverageTable{intervals: intervals, fallback: fallback}
}

// Lookup scans the table in order and returns the first interval containing
// prefix. Deterministic: the same prefix always yields the same interval for
// an unchanged table.
func (t *CoverageTable) Lookup(prefix int) (CoverageInterval, bool) {
	for _, iv := range t.intervals {
		if prefix >= iv.MinPrefix && prefix <= iv.MaxPrefix {
			return iv, true
		}
	}
	return CoverageInterval{}, false
}

// Fallback returns the fixed coverage-area center coordinate. It is a single
// point for the whole coverage area, not per-district; a known precision
// limitation of the curated data.
func (t *CoverageTable) Fallback() Coordinate {
	return t.fallback
}

// Intervals returns the authored intervals in table order.
func (t *CoverageTable) Intervals() []CoverageInterval {
	return t.intervals
}

// saoPauloIntervals covers São Paulo city 5-digit CEP prefixes. Ranges follow
// the Correios allocation for the capital; districts are the municipal
// districts the prefixes predominantly fall in.
var saoPauloIntervals = []CoverageInterval{
	{1000, 1099, "Sé", "Centro"},
	{1100, 1199, "Bom Retiro", "Centro"},
	{1200, 1299, "Santa Cecília", "Centro"},
	{1300, 1399, "Bela Vista", "Centro"},
	{1400, 1499, "Consolação", "Centro"},
	{1500, 1599, "Liberdade", "Centro"},
	{2000, 2399, "Santana", "Zona Norte"},
	{2400, 2799, "Tucuruvi", "Zona Norte"},
	{2800, 2999, "Freguesia do Ó", "Zona Norte"},
	{3000, 3299, "Brás", "Zona Leste"},
	{3300, 3599, "Mooca", "Zona Leste"},
	{3600, 3999, "Penha", "Zona Leste"},
	{4000, 4299, "Vila Mariana", "Zona Sul"},
	{4300, 4599, "Ipiranga", "Zona Sul"},
	{4600, 4999, "Santo Amaro", "Zona Sul"},
	{5000, 5299, "Lapa", "Zona Oeste"},
	{5300, 5599, "Butantã", "Zona Oeste"},
	{5600, 5999, "Pinheiros", "Zona Oeste"},
	{8000, 8499, "Itaquera", "Zona Leste"},
}

// pracaDaSe is the city-center fallback coordinate (Praça da Sé).
var pracaDaSe = Coordinate{Lat: -23.5505, Lon: -46.6333}

// SaoPauloTable returns the built-in coverage table for São Paulo city.
func SaoPauloTable() *CoverageTable {
	return NewCoverageTable(saoPauloIntervals, pracaDaSe)
}
