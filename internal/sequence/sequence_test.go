package sequence

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/fpang/tooltrace/internal/timeline"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", nil, nil},
		{"single", []string{"Brush"}, []string{"Brush"}},
		{"adjacent repeats collapse", []string{"Brush", "Brush", "Move", "Move", "Move"}, []string{"Brush", "Move"}},
		{"later repeats survive", []string{"A", "A", "B", "A"}, []string{"A", "B", "A"}},
		{"no repeats unchanged", []string{"Move", "Brush", "Eraser"}, []string{"Move", "Brush", "Eraser"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Normalize() (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(got, Normalize(got)); diff != "" {
				t.Errorf("Normalize is not idempotent (-once +twice):\n%s", diff)
			}
			for i := 1; i < len(got); i++ {
				if got[i] == got[i-1] {
					t.Errorf("Normalize() left adjacent duplicates at %d: %v", i, got)
				}
			}
		})
	}
}

func TestActionSequenceString(t *testing.T) {
	s := ActionSequence{VideoName: "v", Actions: []string{"A", "B", "A"}}
	if got := s.String(); got != "A -> B -> A" {
		t.Errorf("String() = %q", got)
	}
	if got := (ActionSequence{}).String(); got != "" {
		t.Errorf("empty String() = %q", got)
	}
	if diff := cmp.Diff([]string{"A", "B", "A"}, Parse(s.String())); diff != "" {
		t.Errorf("Parse(String()) (-want +got):\n%s", diff)
	}
}

func at(video, action string, start int64) timeline.UsageInterval {
	return timeline.UsageInterval{VideoName: video, Action: action, Start: timeline.FromSeconds(start), End: timeline.FromSeconds(start)}
}

func TestBuild_SortsThenNormalizes(t *testing.T) {
	// Chunk results arrive in arbitrary order and hours reach two digits, so a
	// text sort of "10:00:00" before "9:00:00" would be wrong.
	intervals := []timeline.UsageInterval{
		at("v2", "Move", 5),
		at("v1", "Brush", 36000),
		at("v1", "Eraser", 32400),
		at("v1", "Move", 0),
		at("v1", "Move", 10),
		at("v2", "Move", 1),
	}
	got := Build(intervals)
	want := []ActionSequence{
		{VideoName: "v1", Actions: []string{"Move", "Eraser", "Brush"}},
		{VideoName: "v2", Actions: []string{"Move"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Build() (-want +got):\n%s", diff)
	}
	if got[0].String() != "Move -> Eraser -> Brush" {
		t.Errorf("String() = %q", got[0].String())
	}
}

func TestBuild_Scenario(t *testing.T) {
	intervals := []timeline.UsageInterval{
		at("v", "Move", 0),
		at("v", "Move", 12),
		at("v", "Brush", 30),
		at("v", "Brush", 31),
		at("v", "Move", 40),
	}
	got := Build(intervals)
	if len(got) != 1 || got[0].String() != "Move -> Brush -> Move" {
		t.Errorf("Build() = %+v", got)
	}
	if Build(nil) != nil {
		t.Error("Build(nil) should be nil")
	}
}
