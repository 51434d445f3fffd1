package geofence

import "testing"

func square(minLng, minLat, maxLng, maxLat float64) Ring {
	return Ring{
		{Lng: minLng, Lat: minLat},
		{Lng: minLng, Lat: maxLat},
		{Lng: maxLng, Lat: maxLat},
		{Lng: maxLng, Lat: minLat},
	}
}

func TestRingContains_InsidePoint(t *testing.T) {
	ring := square(-119, 33, -117, 35)
	pt := Coord{Lng: -118.4, Lat: 34.05}
	if !ringContainsClosed(ring, pt) {
		t.Error("expected point inside the square to be contained")
	}
}

func TestRingContains_OutsidePoint(t *testing.T) {
	ring := square(-119, 33, -117, 35)
	pt := Coord{Lng: -73.98, Lat: 40.76}
	if ringContainsClosed(ring, pt) {
		t.Error("expected point far outside the square to be excluded")
	}
}

func TestRingContains_EdgePointCountsAsInside(t *testing.T) {
	ring := square(-119, 33, -117, 35)
	edge := Coord{Lng: -119, Lat: 34} // on the western edge
	if !ringContainsClosed(ring, edge) {
		t.Error("edge points must count as inside (closed predicate)")
	}
}

func TestPolygonContains_HoleExcludesInterior(t *testing.T) {
	outer := square(-10, -10, 10, 10)
	hole := square(-5, -5, 5, 5)
	p := PolygonShape{Rings: []Ring{outer, hole}}

	if polygonContains(p, Coord{Lng: 0, Lat: 0}) {
		t.Error("point strictly inside the hole must not be contained")
	}
	if !polygonContains(p, Coord{Lng: 8, Lat: 8}) {
		t.Error("point inside the outer ring but outside the hole must be contained")
	}
}

func TestPolygonContains_HoleBoundaryStillContained(t *testing.T) {
	outer := square(-10, -10, 10, 10)
	hole := square(-5, -5, 5, 5)
	p := PolygonShape{Rings: []Ring{outer, hole}}

	if !polygonContains(p, Coord{Lng: -5, Lat: 0}) {
		t.Error("a point on the hole's boundary must still count as contained")
	}
}

func TestAnyPolygonContains_AtLeastOne(t *testing.T) {
	la := PolygonShape{Rings: []Ring{square(-119, 33, -117, 35)}}
	sf := PolygonShape{Rings: []Ring{square(-123, 37, -121, 38)}}
	pt := Coord{Lng: -118.4, Lat: 34.05}

	if !anyPolygonContains([]PolygonShape{la, sf}, pt) {
		t.Error("point inside la should be contained by at least one polygon")
	}

	nyc := Coord{Lng: -73.98, Lat: 40.76}
	if anyPolygonContains([]PolygonShape{la, sf}, nyc) {
		t.Error("point outside both polygons should not be contained")
	}
}
