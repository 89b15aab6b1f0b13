package matcher

import "image"

// Point is an absolute pixel coordinate in frame space.
type Point = image.Point

type cell struct{ x, y int }

// FilterByDistance keeps points greedily in input order: a point survives
// unless an already kept point lies closer than minDistance on both axes.
// Every kept pair therefore differs by at least minDistance on some axis.
// minDistance <= 0 keeps every point.
func FilterByDistance(points []Point, minDistance int) []Point {
	if minDistance <= 0 || len(points) < 2 {
		return append([]Point(nil), points...)
	}

	// Kept points are bucketed into minDistance-sized cells; a conflicting
	// point can only sit in the 3x3 neighbourhood of the candidate's cell.
	grid := make(map[cell][]Point)
	kept := make([]Point, 0, len(points)/4+1)
	for _, q := range points {
		c := cell{floorDiv(q.X, minDistance), floorDiv(q.Y, minDistance)}
		if conflicts(grid, c, q, minDistance) {
			continue
		}
		grid[c] = append(grid[c], q)
		kept = append(kept, q)
	}
	return kept
}

func conflicts(grid map[cell][]Point, c cell, q Point, d int) bool {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			for _, p := range grid[cell{c.x + dx, c.y + dy}] {
				if abs(p.X-q.X) < d && abs(p.Y-q.Y) < d {
					return true
				}
			}
		}
	}
	return false
}

func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
