package advisor

import (
	"log/slog"

	"github.com/ashureev/advisor/internal/domain"
)

// Repair reasons reported in StageOutcome.
const (
	RepairNoCourses         = "requirements_without_courses"
	RepairCourseLoadCapture = "course_load_already_captured"
)

// StageOutcome describes what the stage machine did with one proposal.
type StageOutcome struct {
	From     domain.Stage
	To       domain.Stage
	Proposed string
	Repair   string
	Changed  bool

	// Rejected is set when the proposal was not applied at all.
	Rejected bool
}

// StageMachine owns the degree-planning sub-stage.
type StageMachine struct {
	logger *slog.Logger
}

// NewStageMachine returns a stage machine logging to logger.
func NewStageMachine(logger *slog.Logger) *StageMachine {
	if logger == nil {
		logger = slog.Default()
	}
	return &StageMachine{logger: logger}
}

// Apply validates and repairs the stage oracle's label and moves the artifact
// to it. Outside degree planning it does nothing.
func (m *StageMachine) Apply(a *domain.Artifact, label string) StageOutcome {
	current := a.CurrentStage()
	out := StageOutcome{From: current, To: current, Proposed: label}
	if a.Topic != domain.TopicDegreePlanning {
		out.Rejected = true
		return out
	}

	next, ok := domain.ParseStage(label)
	if !ok {
		m.logger.Warn("Unrecognized stage label, keeping current stage",
			"label", label,
			"stage", current,
		)
		out.Rejected = true
		return out
	}

	next, out.Repair = repairStage(a, next)
	if out.Repair != "" {
		m.logger.Info("Stage label repaired",
			"proposed", label,
			"repaired", next,
			"reason", out.Repair,
		)
	}

	if current != "" && !stageEdgeAllowed(current, next) {
		m.logger.Warn("Stage transition not allowed, keeping current stage",
			"from", current,
			"to", next,
		)
		out.Rejected = true
		return out
	}

	if next != current {
		a.SetStage(next)
		out.To = next
		out.Changed = true
	}
	return out
}

func repairStage(a *domain.Artifact, s domain.Stage) (domain.Stage, string) {
	switch {
	case s == domain.StageRequirements && len(a.CoursesSelected) == 0:
		return domain.StageCareerGoals, RepairNoCourses
	case s == domain.StageBasicInfo && a.PreferredCoursesPerSemester != nil:
		return domain.StageCareerGoals, RepairCourseLoadCapture
	}
	return s, ""
}

// stageEdgeAllowed permits any forward move and reverts to the three
// information-gathering stages.
func stageEdgeAllowed(from, to domain.Stage) bool {
	if !to.Before(from) {
		return true
	}
	switch to {
	case domain.StageMainAdvisor, domain.StageBasicInfo, domain.StageCareerGoals:
		return true
	}
	return false
}
