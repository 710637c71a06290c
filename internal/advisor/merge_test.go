package advisor

import (
	"errors"
	"testing"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func mustParse(t *testing.T, raw string) *ExtractionRecord {
	t.Helper()
	rec, err := ParseExtraction(raw)
	if err != nil {
		t.Fatalf("ParseExtraction failed: %v", err)
	}
	return rec
}

func TestMergeSetsExtractedMajorAndDegree(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	rec := mustParse(t, `{"major": "Computer Science", "degree_type": "BS", "minor": [], "career_goals": null}`)

	changed := Merge(a, rec)
	if diff := cmp.Diff([]string{"major", "degree_type"}, changed); diff != "" {
		t.Fatalf("changed fields mismatch (-want +got):\n%s", diff)
	}
	if a.Major != "Computer Science" || a.DegreeType != "BS" {
		t.Fatalf("unexpected artifact: major=%q degree=%q", a.Major, a.DegreeType)
	}
	if a.Topic != domain.TopicInitial {
		t.Fatalf("merge must not touch topic, got %s", a.Topic)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	t.Parallel()

	rec := mustParse(t, `{
		"major": "Biology",
		"minor": ["Chemistry", "chemistry"],
		"start_term": {"term": "fall", "year": 2024},
		"current_term": "Spring 2025",
		"preferred_courses_per_semester": "4",
		"time_preference": "No Preference",
		"summer_available": true,
		"career_goals": ["medical school"],
		"courses_selected": ["biol101", "chem 101", "CHEM 102"]
	}`)

	once := domain.NewArtifact()
	Merge(once, rec)
	twice := once.Clone()
	if changed := Merge(twice, rec); len(changed) != 0 {
		t.Fatalf("second merge reported changes: %v", changed)
	}
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Fatalf("merge not idempotent (-once +twice):\n%s", diff)
	}

	want := []string{"BIOL 101", "CHEM 101", "CHEM 102"}
	if diff := cmp.Diff(want, once.CoursesSelected); diff != "" {
		t.Fatalf("courses mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Chemistry"}, once.Minors); diff != "" {
		t.Fatalf("minors mismatch (-want +got):\n%s", diff)
	}
	if once.TimePreference != domain.TimeNoPreference {
		t.Fatalf("expected no_preference, got %q", once.TimePreference)
	}
	if once.CurrentTerm == nil || *once.CurrentTerm != (domain.Term{Season: domain.SeasonSpring, Year: 2025}) {
		t.Fatalf("unexpected current term: %+v", once.CurrentTerm)
	}
}

func TestMergeCourseListItemsStayWhole(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		raw  string
		want []string
	}{
		"title without number": {
			raw:  `{"courses_selected": ["Calculus I"]}`,
			want: []string{"CALCULUS I"},
		},
		"code with trailing title": {
			raw:  `{"courses_selected": ["comp 110 Intro to Programming"]}`,
			want: []string{"COMP 110 Intro to Programming"},
		},
		"delimited string": {
			raw:  `{"courses_selected": "CHEM 101; chem 102, biol101"}`,
			want: []string{"CHEM 101", "CHEM 102", "BIOL 101"},
		},
		"string holding a json list": {
			raw:  `{"courses_selected": "[\"COMP 210\", \"Calculus I\"]"}`,
			want: []string{"COMP 210", "CALCULUS I"},
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a := domain.NewArtifact()
			Merge(a, mustParse(t, tt.raw))
			if diff := cmp.Diff(tt.want, a.CoursesSelected); diff != "" {
				t.Fatalf("courses mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMergeNullNeverErases(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	a.Major = "History"
	a.PreferredCoursesPerSemester = ptr(5)
	a.CareerGoals = []string{"museum curator"}
	before := a.Clone()

	rec := mustParse(t, `{"major": null, "preferred_courses_per_semester": "", "career_goals": [], "concentration": "none"}`)
	if !rec.IsEmpty() {
		t.Fatalf("expected empty record, got %+v", rec)
	}
	if changed := Merge(a, rec); len(changed) != 0 {
		t.Fatalf("expected no changes, got %v", changed)
	}
	if diff := cmp.Diff(before, a); diff != "" {
		t.Fatalf("artifact changed (-want +got):\n%s", diff)
	}
}

func TestMergeMostRecentScalarWins(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	a.Major = "History"
	a.CoursesSelected = []string{"HIST 101"}

	Merge(a, mustParse(t, `{"major": "Economics", "courses_selected": ["ECON 101"]}`))
	if a.Major != "Economics" {
		t.Fatalf("expected Economics, got %q", a.Major)
	}
	if diff := cmp.Diff([]string{"HIST 101", "ECON 101"}, a.CoursesSelected); diff != "" {
		t.Fatalf("courses must only grow (-want +got):\n%s", diff)
	}
}

func TestParseExtractionAcceptsFencedOutput(t *testing.T) {
	t.Parallel()

	raw := "Here is what I found:\n```json\n{\"major\": \"Statistics\", \"note\": \"}\"}\n```\nLet me know!"
	rec := mustParse(t, raw)
	if rec.Major == nil || *rec.Major != "Statistics" {
		t.Fatalf("expected Statistics, got %+v", rec.Major)
	}
}

func TestParseExtractionRejectsMalformedOutput(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not json":           "I could not find anything useful.",
		"truncated":          `{"major": "Math", "degree_type": `,
		"wrong list type":    `{"career_goals": 42}`,
		"bad season":         `{"start_term": {"term": "Winter", "year": 2025}}`,
		"fractional count":   `{"preferred_courses_per_semester": 3.5}`,
		"count out of range": `{"preferred_courses_per_semester": 40}`,
		"min above max":      `{"min_courses_per_semester": 5, "max_courses_per_semester": 3}`,
		"unknown time":       `{"time_preference": "whenever"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			rec, err := ParseExtraction(raw)
			if err == nil {
				t.Fatalf("expected error, got %+v", rec)
			}
			if !errors.Is(err, ErrExtractionParse) {
				t.Fatalf("expected ErrExtractionParse, got %v", err)
			}
		})
	}
}
