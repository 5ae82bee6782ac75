package scope

import (
	"fmt"
	"reflect"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestParseOutputQuantities(t *testing.T) {
	text := "We need 3 explainer videos and two social videos, 5 motion graphics pieces, " +
		"key visuals: 4, and 10 blog posts."

	got := ParseOutputQuantities(text)
	want := OutputQuantities{
		VideoProduction: intPtr(5),
		MotionGraphics:  intPtr(5),
		VisualDesign:    intPtr(4),
		ContentOnly:     intPtr(10),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected quantities: %s", describe(got))
	}

	if total := got.Total(); total != 24 {
		t.Fatalf("expected total 24, got %d", total)
	}
}

func TestParseOutputQuantitiesUnknownIsNil(t *testing.T) {
	got := ParseOutputQuantities("Design a new corporate website and manage the launch.")
	if got.Known() {
		t.Fatalf("expected no quantities, got %s", describe(got))
	}
	if types := ClassifyOutputTypes(got); len(types) != 0 {
		t.Fatalf("expected no output types, got %v", types)
	}
}

func TestClassifyOutputTypesSkipsZero(t *testing.T) {
	got := ParseOutputQuantities("Videos: 0. Deliver 6 banners.")
	if got.VideoProduction == nil || *got.VideoProduction != 0 {
		t.Fatalf("expected explicit zero videos, got %s", describe(got))
	}

	types := ClassifyOutputTypes(got)
	if !reflect.DeepEqual(types, []OutputType{OutputVisualDesign}) {
		t.Fatalf("expected only visual design, got %v", types)
	}
}

func describe(q OutputQuantities) string {
	out := ""
	for _, t := range AllOutputTypes {
		if v := q.Get(t); v != nil {
			out += fmt.Sprintf("%s=%d ", t, *v)
		} else {
			out += fmt.Sprintf("%s=nil ", t)
		}
	}
	return out
}
