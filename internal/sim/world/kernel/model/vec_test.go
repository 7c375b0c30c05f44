package model

import "testing"

func TestManhattan(t *testing.T) {
	if got := Manhattan(Vec3i{X: 1, Y: 2, Z: 3}, Vec3i{X: -1, Y: 2, Z: 0}); got != 5 {
		t.Fatalf("Manhattan=%d want 5", got)
	}
}

func TestStepTowardReachesTarget(t *testing.T) {
	a := Vec3i{X: 5, Y: 3, Z: -4}
	b := Vec3i{X: 0, Y: 0, Z: 0}
	start := Manhattan(a, b)
	for i := 0; i < start; i++ {
		next := StepToward(a, b)
		if Manhattan(next, b) != Manhattan(a, b)-1 {
			t.Fatalf("step %d: %v -> %v did not close distance", i, a, next)
		}
		a = next
	}
	if a != b {
		t.Fatalf("end=%v want %v", a, b)
	}
	if StepToward(b, b) != b {
		t.Fatalf("step at target should be a no-op")
	}
}
