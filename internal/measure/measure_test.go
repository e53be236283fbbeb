package measure

import (
	"errors"
	"math"
	"testing"

	"github.com/beamphys/beamtune/internal/sim"
)

func resultWith(fp1, fp2 []float64) *sim.Result {
	return &sim.Result{
		FP1:         fp1,
		FP2:         fp2,
		Requested:   len(fp1),
		Transmitted: len(fp2),
	}
}

func TestWidthsKnownDistribution(t *testing.T) {
	// Two-point distribution at +/-1 mm has RMS exactly 1 mm.
	res := resultWith(
		[]float64{-1e-3, 1e-3, -1e-3, 1e-3},
		[]float64{-2e-3, 2e-3},
	)

	w1, w2, err := Widths(res)
	if err != nil {
		t.Fatalf("Widths failed: %v", err)
	}

	if math.Abs(w1-FWHMFactor*1e-3) > 1e-12 {
		t.Errorf("FP1 width = %g, want %g", w1, FWHMFactor*1e-3)
	}
	if math.Abs(w2-FWHMFactor*2e-3) > 1e-12 {
		t.Errorf("FP2 width = %g, want %g", w2, FWHMFactor*2e-3)
	}
}

func TestWidthsEmptyPlane(t *testing.T) {
	_, _, err := Widths(resultWith(nil, []float64{1}))
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult for empty FP1, got %v", err)
	}

	_, _, err = Widths(resultWith([]float64{1}, nil))
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult for empty FP2, got %v", err)
	}
}

func TestResolvingPower(t *testing.T) {
	// Product centered at 0 with RMS 1 mm, beam shifted by 10 mm.
	product := resultWith(
		[]float64{-1e-3, 1e-3},
		[]float64{-1e-3, 1e-3},
	)
	beam := resultWith(
		[]float64{9e-3, 11e-3},
		[]float64{9e-3, 11e-3},
	)

	r1, r2, err := ResolvingPower(product, beam)
	if err != nil {
		t.Fatalf("ResolvingPower failed: %v", err)
	}

	want := 10e-3 / (FWHMFactor * 1e-3)
	if math.Abs(r1-want) > 1e-9 {
		t.Errorf("FP1 resolving power = %g, want %g", r1, want)
	}
	if math.Abs(r2-want) > 1e-9 {
		t.Errorf("FP2 resolving power = %g, want %g", r2, want)
	}
}

func TestResolvingPowerZeroWidth(t *testing.T) {
	// All product particles at the same position: width 0, RP undefined.
	product := resultWith([]float64{1e-3, 1e-3}, []float64{1e-3, 1e-3})
	beam := resultWith([]float64{5e-3}, []float64{5e-3})

	_, _, err := ResolvingPower(product, beam)
	if err == nil {
		t.Error("expected error for zero product width")
	}
}

func TestResolvingPowerEmptyBeam(t *testing.T) {
	product := resultWith([]float64{-1e-3, 1e-3}, []float64{-1e-3, 1e-3})
	beam := resultWith(nil, nil)

	_, _, err := ResolvingPower(product, beam)
	if !errors.Is(err, ErrEmptyResult) {
		t.Errorf("expected ErrEmptyResult, got %v", err)
	}
}

func TestTransmission(t *testing.T) {
	res := &sim.Result{Requested: 2000, Transmitted: 1500}
	if got := Transmission(res); got != 0.75 {
		t.Errorf("Transmission = %g, want 0.75", got)
	}

	if got := Transmission(&sim.Result{}); got != 0 {
		t.Errorf("Transmission of empty result = %g, want 0", got)
	}
}
