package domain

import (
	"fmt"
	"math"
	"sort"
)

// DefaultProximityThreshold is the center-to-center distance under which two
// elements are considered related. Formats may override it.
const DefaultProximityThreshold = 100.0

// SpatialMap records the reading order and proximity relationships of a
// page's elements. Reading order is a total order over all element ids,
// sorted top-to-bottom then left-to-right. Relationships form an undirected
// graph: if A relates to B then B relates to A.
type SpatialMap struct {
	ReadingOrder  []string
	Relationships map[string][]string
}

type placedElement struct {
	id  string
	box BoundingBox
}

// BuildSpatialMap computes the reading order and proximity graph for a
// page's text regions and visual elements. A non-positive threshold falls
// back to DefaultProximityThreshold.
func BuildSpatialMap(regions []TextRegion, elements []VisualElement, threshold float64) *SpatialMap {
	if threshold <= 0 {
		threshold = DefaultProximityThreshold
	}

	placed := make([]placedElement, 0, len(regions)+len(elements))
	for i := range regions {
		placed = append(placed, placedElement{id: regions[i].ID, box: regions[i].BoundingBox})
	}
	for i := range elements {
		placed = append(placed, placedElement{id: elements[i].ID, box: elements[i].BoundingBox})
	}

	sorted := make([]placedElement, len(placed))
	copy(sorted, placed)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].box.Y != sorted[j].box.Y {
			return sorted[i].box.Y < sorted[j].box.Y
		}
		return sorted[i].box.X < sorted[j].box.X
	})

	sm := &SpatialMap{
		ReadingOrder:  make([]string, 0, len(sorted)),
		Relationships: make(map[string][]string),
	}
	for _, el := range sorted {
		sm.ReadingOrder = append(sm.ReadingOrder, el.id)
	}

	for i := range placed {
		for j := i + 1; j < len(placed); j++ {
			if centerDistance(placed[i].box, placed[j].box) < threshold {
				sm.addRelationship(placed[i].id, placed[j].id)
			}
		}
	}
	return sm
}

// addRelationship links both directions, keeping the graph symmetric.
func (m *SpatialMap) addRelationship(a, b string) {
	if !containsID(m.Relationships[a], b) {
		m.Relationships[a] = append(m.Relationships[a], b)
	}
	if !containsID(m.Relationships[b], a) {
		m.Relationships[b] = append(m.Relationships[b], a)
	}
}

// Related reports whether a relates to b.
func (m *SpatialMap) Related(a, b string) bool {
	return containsID(m.Relationships[a], b)
}

// Validate checks the map invariants against the page's elements: every id
// referenced in the reading order or the relationship graph must exist on
// the page, the reading order must be a permutation of exactly the page's
// ids, and relationships must be symmetric.
func (m *SpatialMap) Validate(page *PageStructure) error {
	known := make(map[string]bool, len(page.TextRegions)+len(page.VisualElements))
	for i := range page.TextRegions {
		known[page.TextRegions[i].ID] = true
	}
	for i := range page.VisualElements {
		known[page.VisualElements[i].ID] = true
	}

	seen := make(map[string]bool, len(m.ReadingOrder))
	for _, id := range m.ReadingOrder {
		if !known[id] {
			return fmt.Errorf("reading order references unknown element %s", id)
		}
		if seen[id] {
			return fmt.Errorf("reading order contains duplicate element %s", id)
		}
		seen[id] = true
	}
	if len(seen) != len(known) {
		return fmt.Errorf("reading order covers %d of %d elements", len(seen), len(known))
	}

	for id, related := range m.Relationships {
		if !known[id] {
			return fmt.Errorf("relationship source %s is not on the page", id)
		}
		for _, other := range related {
			if !known[other] {
				return fmt.Errorf("relationship target %s is not on the page", other)
			}
			if !m.Related(other, id) {
				return fmt.Errorf("relationship %s -> %s is not symmetric", id, other)
			}
		}
	}
	return nil
}

func centerDistance(a, b BoundingBox) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return math.Hypot(ax-bx, ay-by)
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
