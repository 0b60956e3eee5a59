package util_test

import (
	"testing"
	"time"

	"github.com/kmoncr/horibactl/util"
)

func TestClampHigh(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = 20.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestClampLow(t *testing.T) {
	var (
		low   = 0.
		high  = 10.
		input = -1.
	)
	clamped := util.Clamp(input, low, high)
	if clamped == input {
		t.Errorf("expected out of range value %f to be clipped to %f < x < %f, got %f", input, low, high, clamped)
	}
}

func TestSecsToDuration(t *testing.T) {
	var dur time.Duration = 123456789
	secs := dur.Seconds()
	out := util.SecsToDuration(secs)
	if out != dur {
		t.Errorf("expected SecsToDuration to round trip, output %v != expected %v", out, dur)
	}
}

func TestModDegreesWraps(t *testing.T) {
	cases := [][2]float64{
		{370, 10},
		{360, 0},
		{-10, 350},
		{45, 45},
		{725, 5},
	}
	for _, c := range cases {
		got := util.ModDegrees(c[0])
		if diff := got - c[1]; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("ModDegrees(%f) = %f, expected %f", c[0], got, c[1])
		}
	}
}
