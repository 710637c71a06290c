package advisor

import (
	"testing"

	"github.com/ashureev/advisor/internal/domain"
)

func planningArtifact(stage domain.Stage) *domain.Artifact {
	a := domain.NewArtifact()
	a.EnterDegreePlanning()
	a.SetStage(stage)
	return a
}

func TestStageRepairUpgradesSatisfiedBasicInfo(t *testing.T) {
	t.Parallel()

	a := planningArtifact(domain.StageBasicInfo)
	a.PreferredCoursesPerSemester = ptr(4)

	out := NewStageMachine(nil).Apply(a, "BASIC_INFO")
	if out.Repair != RepairCourseLoadCapture {
		t.Fatalf("expected course-load repair, got %q", out.Repair)
	}
	if got := a.CurrentStage(); got != domain.StageCareerGoals {
		t.Fatalf("expected CAREER_GOALS, got %q", got)
	}
	if !out.Changed {
		t.Fatal("expected stage change to be reported")
	}
}

func TestStageRepairDowngradesRequirementsWithoutCourses(t *testing.T) {
	t.Parallel()

	a := planningArtifact(domain.StageCareerGoals)

	out := NewStageMachine(nil).Apply(a, "REQUIREMENTS")
	if out.Repair != RepairNoCourses {
		t.Fatalf("expected no-courses repair, got %q", out.Repair)
	}
	if got := a.CurrentStage(); got != domain.StageCareerGoals {
		t.Fatalf("expected CAREER_GOALS, got %q", got)
	}
	if out.Changed {
		t.Fatal("stage did not move, no change expected")
	}
}

func TestStageRequirementsAcceptedWithCourses(t *testing.T) {
	t.Parallel()

	a := planningArtifact(domain.StageCareerGoals)
	a.CoursesSelected = []string{"COMP 110"}

	NewStageMachine(nil).Apply(a, "requirements")
	if got := a.CurrentStage(); got != domain.StageRequirements {
		t.Fatalf("expected REQUIREMENTS, got %q", got)
	}
}

func TestStageUnknownLabelIsNoop(t *testing.T) {
	t.Parallel()

	a := planningArtifact(domain.StageBasicInfo)
	out := NewStageMachine(nil).Apply(a, "GRADUATED")
	if !out.Rejected || out.Changed {
		t.Fatalf("expected rejected outcome, got %+v", out)
	}
	if got := a.CurrentStage(); got != domain.StageBasicInfo {
		t.Fatalf("expected BASIC_INFO, got %q", got)
	}
}

func TestStageEdges(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from domain.Stage
		to   string
		want domain.Stage
	}{
		{domain.StageMainAdvisor, "BASIC_INFO", domain.StageBasicInfo},
		{domain.StageRequirements, "MAIN_ADVISOR", domain.StageMainAdvisor},
		{domain.StageCompleted, "CAREER_GOALS", domain.StageCareerGoals},
		{domain.StageRequirements, "COMPLETED", domain.StageCompleted},
		{domain.StageCompleted, "REQUIREMENTS", domain.StageCompleted},
	}
	for _, tt := range tests {
		a := planningArtifact(tt.from)
		a.CoursesSelected = []string{"COMP 110"}
		NewStageMachine(nil).Apply(a, tt.to)
		if got := a.CurrentStage(); got != tt.want {
			t.Errorf("%s -> %s: expected %s, got %s", tt.from, tt.to, tt.want, got)
		}
	}
}

func TestStageIgnoredOutsideDegreePlanning(t *testing.T) {
	t.Parallel()

	a := domain.NewArtifact()
	a.Topic = domain.TopicGeneralQA
	out := NewStageMachine(nil).Apply(a, "BASIC_INFO")
	if !out.Rejected || a.Stage != nil {
		t.Fatalf("expected no stage outside degree planning, got %+v", out)
	}
}
