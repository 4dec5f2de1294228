// Package domain models collaborative outage reports for the city of
// São Paulo and the postal-code resolution pipeline behind them.
//
// # CEP Resolution
//
// A CEP (Código de Endereçamento Postal) is the 8-digit Brazilian postal
// code. Users submit a CEP together with an incident type ("no_power" or
// "no_water"); the resolver turns the CEP into a district, an administrative
// zone, display coordinates and, when boundary data is available, a polygon
// for choropleth rendering.
//
// Resolution runs three tiers in strict order, short-circuiting on the first
// success:
//
//  1. Static coverage table: the first five digits of the CEP are matched
//     against curated [min,max] prefix intervals covering São Paulo city.
//     Intervals are authored non-overlapping, so first-match equals
//     only-match. A hit yields the curated district and zone; the district
//     boundary dataset is then consulted for a polygon and centroid, and the
//     city-center fallback coordinate is used when no polygon matches.
//  2. External fallback: CEPs outside the static table are looked up through
//     the national BrasilAPI CEP v2 service, which returns neighborhood,
//     city, state and nested point coordinates. Fallback results never carry
//     a polygon.
//  3. Terminal failure: [ErrNoCoverage].
//
// # Name Matching
//
// District names derived from user input and names from the boundary dataset
// are compared after normalization: uppercase, canonical decomposition, and
// removal of combining diacritical marks, so "Brás" matches "BRAS". Exact
// matches win; otherwise substring containment applies, guarded by a minimum
// query length, with the shortest candidate name as the tie-break.
//
// # Degradation Policy
//
// Geometry problems are never user-facing errors. A missing or unparseable
// boundary dataset, or a district with no matching polygon, degrades to
// point-only rendering at a fixed fallback coordinate. External service
// failures (timeout, non-200, malformed payload, zero coordinates) collapse
// to [ErrNoCoverage] at the resolver surface; only malformed input surfaces
// as [ErrInvalidCEP].
package domain
