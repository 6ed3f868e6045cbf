package geom

import (
	"math"
	"testing"
)

func TestRayCaster_Square(t *testing.T) {
	square := Polygon{Vertices: []Point{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
	}}
	rc := RayCaster{}

	cases := []struct {
		name string
		p    Point
		want bool
	}{
		{"centre", Point{X: 5, Y: 5}, true},
		{"outside right", Point{X: 15, Y: 5}, false},
		{"outside above", Point{X: 5, Y: -1}, false},
		{"on edge", Point{X: 10, Y: 5}, true},
		{"on vertex", Point{X: 0, Y: 0}, true},
		{"on top edge", Point{X: 5, Y: 0}, true},
		{"just inside", Point{X: 9.999, Y: 9.999}, true},
		{"just outside", Point{X: 10.001, Y: 5}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := rc.Contains(tc.p, square); got != tc.want {
				t.Errorf("Contains(%v) = %v, want %v", tc.p, got, tc.want)
			}
		})
	}
}

func TestRayCaster_Concave(t *testing.T) {
	// U-shaped polygon: the notch between the arms is outside.
	u := Polygon{Vertices: []Point{
		{X: 0, Y: 0}, {X: 30, Y: 0}, {X: 30, Y: 30}, {X: 20, Y: 30},
		{X: 20, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 30}, {X: 0, Y: 30},
	}}
	rc := RayCaster{}

	if !rc.Contains(Point{X: 5, Y: 20}, u) {
		t.Error("left arm should be inside")
	}
	if !rc.Contains(Point{X: 25, Y: 20}, u) {
		t.Error("right arm should be inside")
	}
	if rc.Contains(Point{X: 15, Y: 20}, u) {
		t.Error("notch should be outside")
	}
	if !rc.Contains(Point{X: 15, Y: 5}, u) {
		t.Error("base should be inside")
	}
}

func TestRayCaster_Degenerate(t *testing.T) {
	rc := RayCaster{}

	if rc.Contains(Point{X: 0, Y: 0}, Polygon{}) {
		t.Error("empty polygon contains nothing")
	}
	line := Polygon{Vertices: []Point{{X: 0, Y: 0}, {X: 10, Y: 10}}}
	if rc.Contains(Point{X: 5, Y: 5}, line) {
		t.Error("two-vertex polygon contains nothing")
	}
}

func TestPoint_IsFinite(t *testing.T) {
	if !(Point{X: 1, Y: 2}).IsFinite() {
		t.Error("finite point reported non-finite")
	}
	for _, p := range []Point{
		{X: math.Inf(1), Y: 0},
		{X: 0, Y: math.Inf(-1)},
		{X: math.NaN(), Y: 0},
		{X: 0, Y: math.NaN()},
	} {
		if p.IsFinite() {
			t.Errorf("point %v reported finite", p)
		}
	}
}
