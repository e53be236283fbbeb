// Package measure computes beam-spot widths and resolving power from
// transport results. Width is the FWHM of the horizontal distribution
// assuming a Gaussian core; resolving power is the centroid separation of
// two species divided by the product spot width at the same plane.
package measure

import (
	"errors"
	"fmt"
	"math"

	"github.com/beamphys/beamtune/internal/sim"
)

// FWHMFactor converts an RMS width into a full width at half maximum for a
// Gaussian distribution.
const FWHMFactor = 2.3548200450309493

// ErrEmptyResult indicates a focal plane with no recorded particles.
var ErrEmptyResult = errors.New("measure: no particles at focal plane")

// Widths returns the FWHM spot widths at both focal planes in meters.
func Widths(res *sim.Result) (fp1, fp2 float64, err error) {
	if len(res.FP1) == 0 {
		return 0, 0, fmt.Errorf("%w: FP1", ErrEmptyResult)
	}
	if len(res.FP2) == 0 {
		return 0, 0, fmt.Errorf("%w: FP2", ErrEmptyResult)
	}
	return FWHMFactor * rms(res.FP1), FWHMFactor * rms(res.FP2), nil
}

// ResolvingPower returns the separation of the unreacted beam from the
// reaction product divided by the product spot width, per focal plane.
func ResolvingPower(product, beam *sim.Result) (fp1, fp2 float64, err error) {
	w1, w2, err := Widths(product)
	if err != nil {
		return 0, 0, err
	}
	if len(beam.FP1) == 0 || len(beam.FP2) == 0 {
		return 0, 0, fmt.Errorf("%w: unreacted beam", ErrEmptyResult)
	}
	if w1 == 0 || w2 == 0 {
		return 0, 0, fmt.Errorf("measure: zero product width, resolving power undefined")
	}

	sep1 := math.Abs(mean(beam.FP1) - mean(product.FP1))
	sep2 := math.Abs(mean(beam.FP2) - mean(product.FP2))
	return sep1 / w1, sep2 / w2, nil
}

// Transmission returns the fraction of requested particles that reached the
// final focal plane.
func Transmission(res *sim.Result) float64 {
	if res.Requested == 0 {
		return 0
	}
	return float64(res.Transmitted) / float64(res.Requested)
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// rms is the standard deviation about the centroid.
func rms(xs []float64) float64 {
	m := mean(xs)
	var sum float64
	for _, x := range xs {
		d := x - m
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}
