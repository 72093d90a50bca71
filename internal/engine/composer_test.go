package engine_test

import (
	"errors"
	"reflect"
	"testing"

	"rampline/internal/engine"
)

func TestAddPartIdempotent(t *testing.T) {
	ids := []string{"a", "b"}
	ids = engine.AddPart(ids, "c")
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	ids = engine.AddPart(ids, "b")
	if !reflect.DeepEqual(ids, []string{"a", "b", "c"}) {
		t.Fatalf("duplicate add changed order: %v", ids)
	}
}

func TestRemovePartAbsentNoop(t *testing.T) {
	ids := engine.RemovePart([]string{"a", "b", "c"}, "b")
	if !reflect.DeepEqual(ids, []string{"a", "c"}) {
		t.Fatalf("unexpected ids: %v", ids)
	}
	ids = engine.RemovePart(ids, "zzz")
	if !reflect.DeepEqual(ids, []string{"a", "c"}) {
		t.Fatalf("absent remove mutated: %v", ids)
	}
}

func TestRemovePartLeavesInput(t *testing.T) {
	in := []string{"a", "b", "c"}
	out := engine.RemovePart(in, "a")
	if !reflect.DeepEqual(out, []string{"b", "c"}) {
		t.Fatalf("unexpected ids: %v", out)
	}
	if !reflect.DeepEqual(in, []string{"a", "b", "c"}) {
		t.Fatalf("input mutated: %v", in)
	}
}

func TestReorderParts(t *testing.T) {
	ids, err := engine.ReorderParts([]string{"A", "B", "C", "D"}, 0, 2)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"B", "C", "A", "D"}) {
		t.Fatalf("unexpected order: %v", ids)
	}
	ids, err = engine.ReorderParts(ids, 3, 0)
	if err != nil {
		t.Fatalf("reorder: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"D", "B", "C", "A"}) {
		t.Fatalf("unexpected order: %v", ids)
	}
}

func TestReorderPartsInvalidIndexLeavesInput(t *testing.T) {
	in := []string{"A", "B", "C"}
	out, err := engine.ReorderParts(in, 0, 3)
	if err == nil {
		t.Fatalf("expected index error")
	}
	var idx engine.InvalidIndexError
	if !errors.As(err, &idx) {
		t.Fatalf("expected InvalidIndexError, got %T", err)
	}
	if !reflect.DeepEqual(out, []string{"A", "B", "C"}) {
		t.Fatalf("input mutated: %v", out)
	}
	if _, err := engine.ReorderParts(in, -1, 0); err == nil {
		t.Fatalf("expected index error for negative from")
	}
}
