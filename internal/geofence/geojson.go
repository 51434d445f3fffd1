// Tagged-union GeoJSON decoding keyed on geometry.type; unknown geometry
// types are skipped, never fatal.
package geofence

import (
	"encoding/json"
	"fmt"
)

// Coord is a GeoJSON [lng, lat] pair.
type Coord struct {
	Lng float64
	Lat float64
}

// Ring is a closed sequence of coordinates; the first ring of a Polygon is
// its outer boundary, subsequent rings are holes (GeoJSON convention).
type Ring []Coord

// PolygonShape is a decoded Polygon geometry's rings.
type PolygonShape struct {
	Rings []Ring
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	Geometry geometry `json:"geometry"`
}

type geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// firstPointAndPolygons parses a GeoJSON FeatureCollection body, returning
// the first Point feature's coordinates (if any) and every Polygon
// feature's rings. Unknown geometry types are silently skipped.
func firstPointAndPolygons(body []byte) (point *Coord, polygons []PolygonShape, err error) {
	var fc featureCollection
	if err := json.Unmarshal(body, &fc); err != nil {
		return nil, nil, fmt.Errorf("decoding GeoJSON body: %w", err)
	}

	for _, f := range fc.Features {
		switch f.Geometry.Type {
		case "Point":
			if point != nil {
				continue // first Point wins
			}
			var xy [2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &xy); err != nil {
				continue
			}
			point = &Coord{Lng: xy[0], Lat: xy[1]}
		case "Polygon":
			var raw [][][2]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &raw); err != nil {
				continue
			}
			shape := PolygonShape{Rings: make([]Ring, len(raw))}
			for i, ring := range raw {
				r := make(Ring, len(ring))
				for j, xy := range ring {
					r[j] = Coord{Lng: xy[0], Lat: xy[1]}
				}
				shape.Rings[i] = r
			}
			polygons = append(polygons, shape)
		default:
			// Unknown geometry type: skipped, never fatal.
		}
	}
	return point, polygons, nil
}
