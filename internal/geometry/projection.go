package geometry

import "math"

// SIRGAS 2000 is realized on the GRS80 ellipsoid; EPSG:31983 is its UTM
// zone 23S projection, the standard CRS for São Paulo municipal datasets
// (GeoSampa, IBGE district exports).
const (
	grs80A = 6378137.0
	grs80F = 1 / 298.257222101

	utmScale              = 0.9996
	utm23CentralLonDeg    = -45.0
	utmFalseEasting       = 500000.0
	utmFalseNorthingSouth = 10000000.0
)

// utm23SToLonLat inverts the zone 23S transverse Mercator projection using
// the standard series expansion (Snyder, "Map Projections: A Working Manual",
// eq. 8-17..8-25). Accurate to well under a meter inside the zone, which is
// far below the fidelity of the boundary data itself.
func utm23SToLonLat(easting, northing float64) (lon, lat float64) {
	e2 := grs80F * (2 - grs80F)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	m := (northing - utmFalseNorthingSouth) / utmScale
	mu := m / (grs80A * (1 - e2/4 - 3*e4/64 - 5*e6/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
		(151*e1*e1*e1/96)*math.Sin(6*mu) +
		(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

	sinPhi := math.Sin(phi1)
	cosPhi := math.Cos(phi1)
	tanPhi := math.Tan(phi1)

	c1 := ep2 * cosPhi * cosPhi
	t1 := tanPhi * tanPhi
	n1 := grs80A / math.Sqrt(1-e2*sinPhi*sinPhi)
	r1 := grs80A * (1 - e2) / math.Pow(1-e2*sinPhi*sinPhi, 1.5)
	d := (easting - utmFalseEasting) / (n1 * utmScale)

	d2 := d * d
	d3 := d2 * d
	d4 := d2 * d2
	d5 := d4 * d
	d6 := d4 * d2

	latRad := phi1 - (n1*tanPhi/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)
	lonRad := utm23CentralLonDeg*math.Pi/180 +
		(d-(1+2*t1+c1)*d3/6+
			(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120)/cosPhi

	return lonRad * 180 / math.Pi, latRad * 180 / math.Pi
}
