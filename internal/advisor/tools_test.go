package advisor

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestToolboxListsEveryTool(t *testing.T) {
	t.Parallel()

	var names []string
	for _, spec := range NewToolbox(domain.NewArtifact(), discardLogger()).Tools() {
		names = append(names, spec.Name)
	}
	want := []string{
		"major_info", "minor_info", "term_info", "course_load", "time_preference", "summer_availability",
		"career_goals", "credits_needed", "clear_student_major_info", "add_courses", "clear_all_courses", "get_user_info",
	}
	if diff := cmp.Diff(want, names); diff != "" {
		t.Fatalf("tool list mismatch (-want +got):\n%s", diff)
	}
}

func TestToolboxMutators(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	box := NewToolbox(a, discardLogger())
	ctx := context.Background()

	steps := []struct {
		name string
		args map[string]any
	}{
		{"major_info", map[string]any{"major": "Computer Science", "degree_type": "BS"}},
		{"minor_info", map[string]any{"minor": "Math"}},
		{"term_info", map[string]any{"kind": "start", "season": "fall", "year": 2024}},
		{"term_info", map[string]any{"kind": "current", "season": "Spring", "year": 2025}},
		{"course_load", map[string]any{"preferred": 4, "min": 3, "max": 5}},
		{"time_preference", map[string]any{"value": "Morning"}},
		{"summer_availability", map[string]any{"available": false}},
		{"career_goals", map[string]any{"goals": []any{"software engineer"}}},
		{"credits_needed", map[string]any{"credits": 120}},
		{"add_courses", map[string]any{"courses": "comp110, MATH 231"}},
	}
	for _, s := range steps {
		if res := box.Invoke(ctx, s.name, s.args); !res.Success {
			t.Fatalf("%s failed: %s", s.name, res.Text)
		}
	}

	want := &domain.Artifact{
		Topic:                       domain.TopicInitial,
		Major:                       "Computer Science",
		DegreeType:                  "BS",
		Minors:                      []string{"Math"},
		StartTerm:                   &domain.Term{Season: domain.SeasonFall, Year: 2024},
		CurrentTerm:                 &domain.Term{Season: domain.SeasonSpring, Year: 2025},
		PreferredCoursesPerSemester: ptr(4),
		MinCourses:                  ptr(3),
		MaxCourses:                  ptr(5),
		TotalCreditsNeeded:          ptr(120),
		TimePreference:              domain.TimeMorning,
		SummerAvailable:             ptr(false),
		CareerGoals:                 []string{"software engineer"},
		CoursesSelected:             []string{"COMP 110", "MATH 231"},
	}
	if diff := cmp.Diff(want, a); diff != "" {
		t.Fatalf("artifact mismatch (-want +got):\n%s", diff)
	}
	if !box.Mutated() || len(box.Calls()) != len(steps) {
		t.Fatalf("expected %d recorded mutating calls, got %d (mutated=%v)", len(steps), len(box.Calls()), box.Mutated())
	}

	res := box.Invoke(ctx, "get_user_info", nil)
	var profile domain.Artifact
	if err := json.Unmarshal([]byte(res.Text), &profile); err != nil {
		t.Fatalf("get_user_info returned invalid JSON: %v", err)
	}
	if profile.Major != "Computer Science" {
		t.Fatalf("unexpected profile %+v", profile)
	}
}

func TestToolboxAddCoursesAcceptsLists(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		courses any
		want    []string
	}{
		"list":                {[]any{"comp110", "MATH 231"}, []string{"COMP 110", "MATH 231"}},
		"list with titles":    {[]any{"Calculus I", "COMP 110 Intro to Programming"}, []string{"CALCULUS I", "COMP 110 Intro to Programming"}},
		"json list as string": {`["COMP 210", "STOR 155"]`, []string{"COMP 210", "STOR 155"}},
		"delimited string":    {"comp110; math 231", []string{"COMP 110", "MATH 231"}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a := domain.NewArtifact()
			box := NewToolbox(a, discardLogger())
			res := box.Invoke(context.Background(), "add_courses", map[string]any{"courses": tt.courses})
			if !res.Success {
				t.Fatalf("add_courses failed: %s", res.Text)
			}
			if diff := cmp.Diff(tt.want, a.CoursesSelected); diff != "" {
				t.Fatalf("courses mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(a, box.Snapshot()); diff != "" {
				t.Fatalf("snapshot differs from artifact (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToolboxFailuresAreReportedAsText(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		tool string
		args map[string]any
	}{
		"unknown tool":       {"drop_out", nil},
		"bad season":         {"term_info", map[string]any{"kind": "start", "season": "Winter", "year": 2024}},
		"bad kind":           {"term_info", map[string]any{"kind": "next", "season": "Fall", "year": 2024}},
		"load out of range":  {"course_load", map[string]any{"preferred": 12}},
		"min above max":      {"course_load", map[string]any{"min": 5, "max": 2}},
		"wrong type":         {"credits_needed", map[string]any{"credits": "lots"}},
		"empty major info":   {"major_info", map[string]any{}},
		"unknown time":       {"time_preference", map[string]any{"value": "midnight"}},
		"no courses":         {"add_courses", map[string]any{"courses": " , ;"}},
		"numeric course":     {"add_courses", map[string]any{"courses": []any{110}}},
		"unconfirmed clear":  {"clear_all_courses", map[string]any{"confirmed": false}},
		"unconfirmed reset":  {"clear_student_major_info", map[string]any{}},
		"missing goals list": {"career_goals", map[string]any{"goals": []any{}}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			a := domain.NewArtifact()
			a.Major = "History"
			a.CoursesSelected = []string{"HIST 101"}
			before := a.Clone()

			box := NewToolbox(a, discardLogger())
			res := box.Invoke(context.Background(), tt.tool, tt.args)
			if res.Success {
				t.Fatalf("expected failure, got %+v", res)
			}
			if !strings.HasPrefix(res.Text, "tool invocation failure") {
				t.Fatalf("unexpected failure text %q", res.Text)
			}
			if box.Mutated() {
				t.Fatal("failed tool marked the artifact as mutated")
			}
			if diff := cmp.Diff(before, a); diff != "" {
				t.Fatalf("artifact changed (-want +got):\n%s", diff)
			}
		})
	}
}

func TestToolboxConfirmedResets(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	a.Major = "History"
	a.DegreeType = "BA"
	a.Minors = []string{"Art"}
	a.CoursesSelected = []string{"HIST 101"}
	a.CurrentTerm = &domain.Term{Season: domain.SeasonFall, Year: 2025}

	box := NewToolbox(a, discardLogger())
	if res := box.Invoke(context.Background(), "clear_all_courses", map[string]any{"confirmed": true}); !res.Success {
		t.Fatalf("clear_all_courses failed: %s", res.Text)
	}
	if len(a.CoursesSelected) != 0 {
		t.Fatalf("courses not cleared: %v", a.CoursesSelected)
	}

	if res := box.Invoke(context.Background(), "clear_student_major_info", map[string]any{"confirmed": true}); !res.Success {
		t.Fatalf("clear_student_major_info failed: %s", res.Text)
	}
	if a.Major != "" || a.DegreeType != "" || len(a.Minors) != 0 {
		t.Fatalf("major info not cleared: %+v", a)
	}
	if a.CurrentTerm == nil {
		t.Fatal("reset must keep unrelated fields")
	}
}

func TestToolboxRejectsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := domain.NewArtifact()
	res := NewToolbox(a, discardLogger()).Invoke(ctx, "major_info", map[string]any{"major": "Math"})
	if res.Success || a.Major != "" {
		t.Fatalf("cancelled invocation applied: %+v", res)
	}
}
