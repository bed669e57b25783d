package neighborhood

import (
	"slices"

	"github.com/atinyakov/ResQWave/internal/models"
	"github.com/mmcloughlin/geohash"
)

// CellPrecision is the geohash length stored on markers (about 150 m cells).
const CellPrecision uint = 7

// Cell returns the geohash of c at the given precision.
func Cell(c models.Coordinates, precision uint) string {
	return geohash.EncodeWithPrecision(c.Latitude, c.Longitude, precision)
}

// GroupByCell buckets markers by geohash prefix of length precision.
func GroupByCell(markers []models.Marker, precision uint) map[string][]models.Marker {
	groups := make(map[string][]models.Marker)
	for _, m := range markers {
		cell := m.Geohash
		if uint(len(cell)) >= precision {
			cell = cell[:precision]
		} else {
			cell = Cell(m.Coordinates, precision)
		}
		groups[cell] = append(groups[cell], m)
	}
	return groups
}

// Nearby returns the markers that fall in the same cell as center, or in one
// of its eight neighbours, at the given precision.
func Nearby(center models.Marker, markers []models.Marker, precision uint) []models.Marker {
	home := Cell(center.Coordinates, precision)
	cells := append(geohash.Neighbors(home), home)

	var out []models.Marker
	for _, m := range markers {
		if m.NeighborhoodID == center.NeighborhoodID {
			continue
		}
		if slices.Contains(cells, Cell(m.Coordinates, precision)) {
			out = append(out, m)
		}
	}
	return out
}
