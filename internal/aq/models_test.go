package aq

import "testing"

func TestCategorize(t *testing.T) {
	cases := []struct {
		aqi  int
		want string
	}{
		{0, "good"},
		{50, "good"},
		{51, "moderate"},
		{100, "moderate"},
		{101, "unhealthy_sensitive"},
		{150, "unhealthy_sensitive"},
		{151, "unhealthy"},
		{200, "unhealthy"},
		{201, "very_unhealthy"},
		{300, "very_unhealthy"},
		{301, "hazardous"},
		{480, "hazardous"},
	}
	for _, tc := range cases {
		if got := Categorize(tc.aqi); got != tc.want {
			t.Errorf("Categorize(%d) = %q, want %q", tc.aqi, got, tc.want)
		}
	}
}

func TestGeneratorWalkStaysBounded(t *testing.T) {
	g := NewGenerator(42)
	for i := 0; i < 1000; i++ {
		snap := g.Next("Delhi")
		if snap.AQI < 5 || snap.AQI > 480 {
			t.Fatalf("AQI %d out of bounds at step %d", snap.AQI, i)
		}
		if snap.Location != "Delhi" {
			t.Fatalf("location = %q", snap.Location)
		}
	}
}

func TestGeneratorDeterministicWithSeed(t *testing.T) {
	a := NewGenerator(7)
	b := NewGenerator(7)
	for i := 0; i < 10; i++ {
		if a.Next("Mumbai").AQI != b.Next("Mumbai").AQI {
			t.Fatal("same seed should produce the same walk")
		}
	}
}
