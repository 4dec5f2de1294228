// Command datacheck verifies the integrity of the curated coverage data
// against a district boundary dataset: interval ordering and overlap, and
// district-name resolvability in the geometry index. It also reports
// boundary features that no interval references, which usually indicates a
// stale table after a dataset update.
//
// Usage:
//
//	go run ./cmd/datacheck -geojson data/districts.geojson
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/geometry"
	"github.com/opensampa/outage-map/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	geojsonPath := flag.String("geojson", "data/districts.geojson", "path to the district boundary GeoJSON (plain or .gz)")
	flag.Parse()

	if code := run(*geojsonPath); code != 0 {
		os.Exit(code)
	}
}

func run(geojsonPath string) int {
	table := domain.SaoPauloTable()
	phases := []*phase{
		checkIntervals(table),
		checkGeometry(table, geojsonPath),
	}

	failed := 0
	for _, p := range phases {
		if p.passed() {
			fmt.Printf("PASS  %s\n", p.name)
			continue
		}
		failed++
		fmt.Printf("FAIL  %s\n", p.name)
		for _, e := range p.errors {
			fmt.Printf("      %s\n", e)
		}
	}
	if failed > 0 {
		fmt.Printf("\n%d of %d phases failed\n", failed, len(phases))
		return 1
	}
	fmt.Printf("\nall %d phases passed\n", len(phases))
	return 0
}

// checkIntervals enforces the data-authoring invariant the resolver relies
// on: intervals are well-formed, ordered, and non-overlapping.
func checkIntervals(table *domain.CoverageTable) *phase {
	p := &phase{name: "coverage intervals"}

	intervals := table.Intervals()
	if len(intervals) == 0 {
		p.errorf("table is empty")
		return p
	}
	for i, iv := range intervals {
		if iv.MinPrefix > iv.MaxPrefix {
			p.errorf("interval %d (%s): min %d > max %d", i, iv.District, iv.MinPrefix, iv.MaxPrefix)
		}
		if iv.District == "" || iv.Zone == "" {
			p.errorf("interval %d: missing district or zone", i)
		}
		if i == 0 {
			continue
		}
		prev := intervals[i-1]
		if iv.MinPrefix <= prev.MaxPrefix {
			p.errorf("interval %d (%s) overlaps or is out of order with %s [%d-%d]",
				i, iv.District, prev.District, prev.MinPrefix, prev.MaxPrefix)
		}
	}
	return p
}

// checkGeometry verifies every table district resolves against the boundary
// dataset, and lists dataset features the table never references.
func checkGeometry(table *domain.CoverageTable, geojsonPath string) *phase {
	p := &phase{name: "district geometry"}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := geometry.NewStore("", geojsonPath, observability.NewMetricsForTesting(), logger)
	idx := store.Index()
	if idx == nil {
		p.errorf("dataset %s could not be loaded", geojsonPath)
		return p
	}

	referenced := make(map[string]bool)
	for _, iv := range table.Intervals() {
		m, ok := store.FindByName(iv.District)
		if !ok {
			p.errorf("district %q has no boundary feature", iv.District)
			continue
		}
		referenced[domain.Normalize(m.Name)] = true
	}

	for _, d := range idx.Districts() {
		if !referenced[domain.Normalize(d.Name)] {
			p.errorf("boundary feature %q is not referenced by any interval", d.Name)
		}
	}
	return p
}
