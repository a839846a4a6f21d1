package geom

import "testing"

func TestDistance(t *testing.T) {
	if d := Distance(Pt(0, 0), Pt(3, 4)); d != 5 {
		t.Errorf("expected 5, got %v", d)
	}
	if d := Distance(Pt(-1, -1), Pt(-1, -1)); d != 0 {
		t.Errorf("expected 0 for identical points, got %v", d)
	}
	if Distance(Pt(1, 2), Pt(7, -3)) != Distance(Pt(7, -3), Pt(1, 2)) {
		t.Error("distance should be symmetric")
	}
}
