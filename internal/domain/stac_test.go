package domain

import "testing"

func TestBBoxUnion(t *testing.T) {
	a := BBox{-120, 30, -110, 40}
	b := BBox{-115, 35, -105, 45}

	got := a.Union(b)
	want := BBox{-120, 30, -105, 45}
	if got != want {
		t.Errorf("Union = %v, want %v", got, want)
	}
}

func TestUnionBBoxes(t *testing.T) {
	boxes := []BBox{
		{-120, 30, -110, 40},
		{-115, 35, -105, 45},
		{-118, 32, -112, 38},
	}

	got, ok := UnionBBoxes(boxes)
	if !ok {
		t.Fatal("UnionBBoxes reported no boxes")
	}
	want := BBox{-120, 30, -105, 45}
	if got != want {
		t.Errorf("UnionBBoxes = %v, want %v", got, want)
	}
}

func TestUnionBBoxesEmpty(t *testing.T) {
	if _, ok := UnionBBoxes(nil); ok {
		t.Error("UnionBBoxes(nil) reported a box")
	}
}

func TestNewPolygonGeometry(t *testing.T) {
	ring := Extent{MinX: 10, MinY: 40, MaxX: 12, MaxY: 42}.Ring()
	geom := NewPolygonGeometry(ring)

	if geom.Type != "Polygon" {
		t.Errorf("Type = %q, want Polygon", geom.Type)
	}
	if len(geom.Coordinates) != 1 || len(geom.Coordinates[0]) != 5 {
		t.Fatalf("Coordinates shape = %dx%d, want 1x5", len(geom.Coordinates), len(geom.Coordinates[0]))
	}
}
