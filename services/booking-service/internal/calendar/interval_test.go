package calendar

import (
	"testing"
	"time"
)

func at(min int) time.Time {
	return time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC).Add(time.Duration(min) * time.Minute)
}

func iv(start, end int) Interval {
	return Interval{Start: at(start), End: at(end)}
}

func TestOverlaps_Symmetric(t *testing.T) {
	cases := []struct {
		a, b Interval
		want bool
	}{
		{iv(0, 10), iv(10, 20), false},
		{iv(0, 10), iv(5, 15), true},
		{iv(0, 30), iv(10, 20), true},
		{iv(0, 10), iv(20, 30), false},
		{iv(0, 10), iv(0, 10), true},
		{iv(9, 10), iv(0, 30), true},
	}
	for _, c := range cases {
		if got := Overlaps(c.a, c.b); got != c.want {
			t.Fatalf("Overlaps(%v,%v) = %v, want %v", c.a, c.b, got, c.want)
		}
		if Overlaps(c.a, c.b) != Overlaps(c.b, c.a) {
			t.Fatalf("Overlaps not symmetric for %v %v", c.a, c.b)
		}
	}
}

func TestOverlaps_Reflexive(t *testing.T) {
	for start := 0; start < 120; start += 7 {
		a := iv(start, start+1+start%13)
		if !Overlaps(a, a) {
			t.Fatalf("non-empty interval %v must overlap itself", a)
		}
	}
}

func TestIntervalContainsAndValid(t *testing.T) {
	outer := iv(540, 600)
	if !outer.Contains(iv(540, 600)) || !outer.Contains(iv(550, 560)) {
		t.Fatal("expected containment")
	}
	if outer.Contains(iv(530, 560)) || outer.Contains(iv(590, 610)) {
		t.Fatal("unexpected containment")
	}
	if iv(10, 10).Valid() || iv(20, 10).Valid() {
		t.Fatal("empty or inverted interval reported valid")
	}
	if got := NewInterval(at(0), 45*time.Minute); got.End != at(45) || got.Duration() != 45*time.Minute {
		t.Fatalf("unexpected interval %v", got)
	}
}
