package advisor

import (
	"testing"

	"github.com/ashureev/advisor/internal/domain"
	"github.com/google/go-cmp/cmp"
)

func TestEvaluateDegreePlanning(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	got := Evaluate(domain.TopicDegreePlanning, a)
	want := Completeness{
		Missing: []string{"major", "degree_type", "current_term", "start_term", "preferred_courses_per_semester", "career_goals"},
		Percent: 0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("empty artifact (-want +got):\n%s", diff)
	}

	a.Major = "Computer Science"
	a.DegreeType = "BS"
	got = Evaluate(domain.TopicDegreePlanning, a)
	if got.Percent != 33 {
		t.Fatalf("expected 33%%, got %d", got.Percent)
	}
	if diff := cmp.Diff([]string{"current_term", "start_term", "preferred_courses_per_semester", "career_goals"}, got.Missing); diff != "" {
		t.Fatalf("missing mismatch (-want +got):\n%s", diff)
	}

	a.CurrentTerm = &domain.Term{Season: domain.SeasonFall, Year: 2025}
	a.StartTerm = &domain.Term{Season: domain.SeasonFall, Year: 2024}
	a.PreferredCoursesPerSemester = ptr(4)
	a.CareerGoals = []string{"software engineer"}
	got = Evaluate(domain.TopicDegreePlanning, a)
	if got.Percent != 100 || len(got.Missing) != 0 {
		t.Fatalf("expected complete profile, got %+v", got)
	}
}

func TestEvaluateOtherTopicsUseCourseQuestionFields(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	a.Major = "Biology"
	a.TimePreference = domain.TimeMorning

	for _, topic := range []domain.Topic{domain.TopicInitial, domain.TopicCourseQuestion, domain.TopicGeneralQA} {
		got := Evaluate(topic, a)
		want := Completeness{Missing: []string{"current_term", "preferred_courses_per_semester"}, Percent: 50}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", topic, diff)
		}
	}
}

func TestEvaluateIsPure(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	a.Major = "History"
	before := a.Clone()
	first := Evaluate(domain.TopicDegreePlanning, a)
	second := Evaluate(domain.TopicDegreePlanning, a)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated evaluation differs (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(before, a); diff != "" {
		t.Fatalf("artifact mutated (-want +got):\n%s", diff)
	}
}

func TestResponseModeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic domain.Topic
		stage domain.Stage
		want  ResponseMode
	}{
		{domain.TopicInitial, "", ModeInitial},
		{domain.TopicGeneralQA, "", ModeGeneral},
		{domain.TopicCourseQuestion, "", ModeCourseQuestion},
		{domain.TopicDegreePlanning, domain.StageMainAdvisor, ModeMainDegreeAdvisor},
		{domain.TopicDegreePlanning, domain.StageBasicInfo, ModeBasicInfo},
		{domain.TopicDegreePlanning, domain.StageCareerGoals, ModeCareerGoals},
		{domain.TopicDegreePlanning, domain.StageRequirements, ModeRequirements},
		{domain.TopicDegreePlanning, domain.StageCompleted, ModeMainDegreeAdvisor},
	}
	for _, tt := range tests {
		a := domain.NewArtifact()
		a.Topic = tt.topic
		if tt.stage != "" {
			a.Stage = ptr(tt.stage)
		}
		if got := ResponseModeFor(a); got != tt.want {
			t.Errorf("ResponseModeFor(%s/%s) = %s, want %s", tt.topic, tt.stage, got, tt.want)
		}
	}
}
