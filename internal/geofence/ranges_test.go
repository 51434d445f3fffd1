package geofence_test

import (
	"reflect"
	"strconv"
	"testing"

	"github.com/skurt/geofence-monitor/internal/geofence"
)

func TestParseRange_SingleID(t *testing.T) {
	ids, err := geofence.ParseRange("7")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{7}) {
		t.Errorf("ids = %v, want [7]", ids)
	}
}

func TestParseRange_NegativeID(t *testing.T) {
	ids, err := geofence.ParseRange("-2")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{-2}) {
		t.Errorf("ids = %v, want [-2]", ids)
	}
}

func TestParseRange_InclusiveRange(t *testing.T) {
	ids, err := geofence.ParseRange("2-4")
	if err != nil {
		t.Fatalf("ParseRange: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{2, 3, 4}) {
		t.Errorf("ids = %v, want [2 3 4]", ids)
	}
}

func TestParseRange_InvertedRangeErrors(t *testing.T) {
	if _, err := geofence.ParseRange("8-2"); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestParseRange_GarbageErrors(t *testing.T) {
	if _, err := geofence.ParseRange("abc"); err == nil {
		t.Fatal("expected error for non-numeric term")
	}
}

// Overlapping terms collapse: [1-2, 1, 2] flattens to exactly [1, 2].
func TestFlattenRanges_DuplicateRanges(t *testing.T) {
	ids, err := geofence.FlattenRanges([]string{"1-2", "1", "2"})
	if err != nil {
		t.Fatalf("FlattenRanges: %v", err)
	}
	if !reflect.DeepEqual(ids, []int{1, 2}) {
		t.Errorf("ids = %v, want [1 2]", ids)
	}
}

// Flattening is idempotent: flatten(flatten(X)) == flatten(X).
func TestFlattenRanges_Idempotent(t *testing.T) {
	first, err := geofence.FlattenRanges([]string{"5", "2-4"})
	if err != nil {
		t.Fatalf("FlattenRanges: %v", err)
	}
	asStrings := make([]string, len(first))
	for i, id := range first {
		asStrings[i] = strconv.Itoa(id)
	}
	second, err := geofence.FlattenRanges(asStrings)
	if err != nil {
		t.Fatalf("FlattenRanges on flattened output: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("flatten(flatten(X)) = %v, want %v", second, first)
	}
}

// The order of input terms does not affect the result.
func TestFlattenRanges_Commutative(t *testing.T) {
	a, err := geofence.FlattenRanges([]string{"5", "2-4", "1"})
	if err != nil {
		t.Fatalf("FlattenRanges: %v", err)
	}
	b, err := geofence.FlattenRanges([]string{"1", "5", "2-4"})
	if err != nil {
		t.Fatalf("FlattenRanges: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("flatten order a=%v vs b=%v differ", a, b)
	}
}
