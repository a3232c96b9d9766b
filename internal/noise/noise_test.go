package noise

import (
	"math"
	"testing"
)

func TestEval2Deterministic(t *testing.T) {
	a := New("test-seed")
	b := New("test-seed")

	for i := 0; i < 200; i++ {
		x := float64(i)*0.173 - 10
		y := float64(i)*0.311 + 3
		if a.Eval2(x, y) != b.Eval2(x, y) {
			t.Fatalf("Eval2(%f,%f) differs between sources with the same seed", x, y)
		}
	}
}

func TestEval2Range(t *testing.T) {
	src := New("range")
	for y := -50; y < 50; y++ {
		for x := -50; x < 50; x++ {
			v := src.Eval2(float64(x)*0.37, float64(y)*0.41)
			if v < -1 || v > 1 || math.IsNaN(v) {
				t.Fatalf("Eval2 out of range at (%d,%d): %f", x, y, v)
			}
		}
	}
}

func TestDistinctSeedsDiffer(t *testing.T) {
	a := New("alpha")
	b := New("beta")

	same := 0
	for i := 0; i < 100; i++ {
		x, y := float64(i)*0.53, float64(i)*0.29
		if a.Eval2(x, y) == b.Eval2(x, y) {
			same++
		}
	}
	if same > 10 {
		t.Fatalf("distinct seeds produced %d/100 identical samples", same)
	}
}

func TestEval2Continuous(t *testing.T) {
	src := New("smooth")
	const eps = 1e-4
	for i := 0; i < 100; i++ {
		x, y := float64(i)*0.77, float64(i)*0.13
		d := math.Abs(src.Eval2(x, y) - src.Eval2(x+eps, y+eps))
		if d > 0.01 {
			t.Fatalf("jump of %f between nearby samples at (%f,%f)", d, x, y)
		}
	}
}

func TestSeedFromString(t *testing.T) {
	if SeedFromString("a") == SeedFromString("b") {
		t.Fatal("different strings hashed to the same seed")
	}
	if SeedFromString("x") != SeedFromString("x") {
		t.Fatal("seed hash not stable")
	}
	if New("x").Seed() != SeedFromString("x") {
		t.Fatal("Seed() does not report the hashed seed")
	}
}

func TestFBMMatchesOctaveSum(t *testing.T) {
	src := NewInt(7)
	x, y := 0.21, -0.37

	want := src.Eval2(x, y) + src.Eval2(2*x, 2*y)*0.5 + src.Eval2(4*x, 4*y)*0.25
	if got := src.FBM(x, y, 3); math.Abs(got-want) > 1e-12 {
		t.Fatalf("FBM = %f, want %f", got, want)
	}
	if got := src.FBM(x, y, 0); got != 0 {
		t.Fatalf("FBM with zero octaves = %f, want 0", got)
	}
}

func TestFBMOctavesAddDetail(t *testing.T) {
	src := New("octaves")
	differ := 0
	for i := 0; i < 50; i++ {
		x, y := float64(i)*0.19-3, float64(i)*0.07+1
		if math.Abs(src.FBM(x, y, 6)-src.FBM(x, y, 1)) > 1e-9 {
			differ++
		}
	}
	if differ < 40 {
		t.Fatalf("six octaves differ from one at only %d/50 points", differ)
	}
}
