package advisor

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeCourseCode(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"comp110":   "COMP 110",
		"Comp 110":  "COMP 110",
		" math 231": "MATH 231",
		"STOR155H":  "STOR 155H",
		"elective":  "ELECTIVE",
		"110":       "110",
	}
	for in, want := range tests {
		if got := NormalizeCourseCode(in); got != want {
			t.Errorf("NormalizeCourseCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitCourses(t *testing.T) {
	t.Parallel()

	got := SplitCourses("COMP 110, math231;  STOR 155 biol101")
	want := []string{"COMP 110", "MATH 231", "STOR 155", "BIOL 101"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("SplitCourses mismatch (-want +got):\n%s", diff)
	}

	if got := SplitCourses("  "); len(got) != 0 {
		t.Fatalf("expected no courses, got %v", got)
	}
}
