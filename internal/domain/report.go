package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error taxonomy. Input and coverage errors are terminal for a submission and
// surfaced to the caller; geometry and external-service problems are absorbed
// internally and degrade instead.
var (
	// ErrInvalidCEP marks input that does not reduce to exactly 8 digits.
	ErrInvalidCEP = errors.New("cep must contain exactly 8 digits")

	// ErrNoCoverage marks a well-formed CEP that matched neither the static
	// table nor the external fallback.
	ErrNoCoverage = errors.New("no coverage for this cep")

	// ErrInvalidIncidentType marks an unknown incident type tag.
	ErrInvalidIncidentType = errors.New("incident type must be no_power or no_water")
)

// IncidentType tags the kind of outage being reported.
type IncidentType string

const (
	NoPower IncidentType = "no_power"
	NoWater IncidentType = "no_water"
)

// ParseIncidentType validates a user-supplied incident type tag.
func ParseIncidentType(s string) (IncidentType, error) {
	switch IncidentType(strings.TrimSpace(s)) {
	case NoPower:
		return NoPower, nil
	case NoWater:
		return NoWater, nil
	default:
		return "", ErrInvalidIncidentType
	}
}

// Report is an accepted outage report, located in a district.
type Report struct {
	ID           string       `json:"id"`
	CEP          string       `json:"cep"`
	IncidentType IncidentType `json:"incident_type"`
	District     string       `json:"district"`
	Zone         string       `json:"zone"`
	City         string       `json:"city"`
	RegionCode   string       `json:"region_code"`
	Coordinate   Coordinate   `json:"coordinate"`
	Source       Source       `json:"source"`
	ReportedAt   time.Time    `json:"reported_at"`
}

// NewReport builds a Report from a resolution result. The ID is a
// deterministic hash of cep|type|timestamp, so replaying the same submission
// at the same instant produces the same ID.
func NewReport(res ResolutionResult, typ IncidentType, at time.Time) Report {
	return Report{
		ID:           reportID(res.CEP, typ, at),
		CEP:          res.CEP,
		IncidentType: typ,
		District:     res.District,
		Zone:         res.Zone,
		City:         res.City,
		RegionCode:   res.RegionCode,
		Coordinate:   Coordinate{Lat: res.Lat, Lon: res.Lon},
		Source:       res.Source,
		ReportedAt:   at,
	}
}

func reportID(cep string, typ IncidentType, at time.Time) string {
	input := fmt.Sprintf("%s|%s|%d", cep, typ, at.UnixNano())
	hash := sha256.Sum256([]byte(input))
	return string(typ) + "-" + hex.EncodeToString(hash[:8])
}

// CleanCEP strips every non-digit rune from s and validates that exactly 8
// digits remain. "01310-930" and "01310930" both clean to "01310930".
func CleanCEP(s string) (string, error) {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if len(clean) != 8 {
		return "", ErrInvalidCEP
	}
	return clean, nil
}
