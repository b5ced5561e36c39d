package domain

import (
	"testing"
)

func regionAt(id string, x, y float64) TextRegion {
	return TextRegion{
		ID:          id,
		Text:        "text",
		BoundingBox: BoundingBox{X: x, Y: y, Width: 50, Height: 20},
	}
}

func TestBuildSpatialMap_ReadingOrder(t *testing.T) {
	// Same row is ordered left to right, rows top to bottom
	regions := []TextRegion{
		regionAt("bottom", 10, 500),
		regionAt("top_right", 200, 10),
		regionAt("top_left", 10, 10),
	}

	m := BuildSpatialMap(regions, nil, DefaultProximityThreshold)

	want := []string{"top_left", "top_right", "bottom"}
	if len(m.ReadingOrder) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(m.ReadingOrder))
	}
	for i, id := range want {
		if m.ReadingOrder[i] != id {
			t.Errorf("position %d: expected %s, got %s", i, id, m.ReadingOrder[i])
		}
	}
}

func TestBuildSpatialMap_ProximitySymmetric(t *testing.T) {
	regions := []TextRegion{
		regionAt("a", 0, 0),
		regionAt("b", 30, 0),   // close to a
		regionAt("c", 500, 500), // far from both
	}

	m := BuildSpatialMap(regions, nil, DefaultProximityThreshold)

	if !m.Related("a", "b") || !m.Related("b", "a") {
		t.Error("expected a and b to be related in both directions")
	}
	if m.Related("a", "c") {
		t.Error("expected a and c to be unrelated")
	}
}

func TestBuildSpatialMap_ThresholdBoundary(t *testing.T) {
	// Centers exactly threshold apart are NOT related
	regions := []TextRegion{
		{ID: "a", BoundingBox: BoundingBox{X: 0, Y: 0, Width: 0, Height: 0}},
		{ID: "b", BoundingBox: BoundingBox{X: 100, Y: 0, Width: 0, Height: 0}},
	}

	m := BuildSpatialMap(regions, nil, 100)
	if m.Related("a", "b") {
		t.Error("distance equal to threshold should not relate regions")
	}

	m = BuildSpatialMap(regions, nil, 101)
	if !m.Related("a", "b") {
		t.Error("distance below threshold should relate regions")
	}
}

func TestBuildSpatialMap_IncludesVisualElements(t *testing.T) {
	regions := []TextRegion{regionAt("r1", 0, 0)}
	elements := []VisualElement{
		{ID: "img1", ElementType: "image", BoundingBox: BoundingBox{X: 10, Y: 10, Width: 20, Height: 20}},
	}

	m := BuildSpatialMap(regions, elements, DefaultProximityThreshold)

	if len(m.ReadingOrder) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(m.ReadingOrder))
	}
	if !m.Related("r1", "img1") {
		t.Error("expected nearby image to be related to the region")
	}
}

func TestSpatialMap_Validate(t *testing.T) {
	page := &PageStructure{
		PageNumber:  1,
		Width:       600,
		Height:      800,
		TextRegions: []TextRegion{regionAt("a", 0, 0), regionAt("b", 30, 0)},
	}
	page.SpatialMap = BuildSpatialMap(page.TextRegions, nil, DefaultProximityThreshold)

	if err := page.SpatialMap.Validate(page); err != nil {
		t.Fatalf("valid map rejected: %v", err)
	}

	// Unknown id
	bad := &SpatialMap{ReadingOrder: []string{"a", "ghost"}}
	if err := bad.Validate(page); err == nil {
		t.Error("expected unknown id to fail validation")
	}

	// Duplicate id
	bad = &SpatialMap{ReadingOrder: []string{"a", "a"}}
	if err := bad.Validate(page); err == nil {
		t.Error("expected duplicate id to fail validation")
	}

	// Missing id
	bad = &SpatialMap{ReadingOrder: []string{"a"}}
	if err := bad.Validate(page); err == nil {
		t.Error("expected missing id to fail validation")
	}

	// Asymmetric relationship
	bad = &SpatialMap{
		ReadingOrder:  []string{"a", "b"},
		Relationships: map[string][]string{"a": {"b"}},
	}
	if err := bad.Validate(page); err == nil {
		t.Error("expected asymmetric relationships to fail validation")
	}
}
