package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Term is an academic term such as Fall 2025.
type Term struct {
	Season Season `json:"term" validate:"required,oneof=Fall Spring Summer"`
	Year   int    `json:"year" validate:"min=1900,max=2200"`
}

// String renders the term as "Fall 2025".
func (t Term) String() string {
	return fmt.Sprintf("%s %d", t.Season, t.Year)
}

// Artifact is the structured student profile built up over a session.
//
// Stage is set only while Topic is TopicDegreePlanning. When the conversation
// leaves degree planning the stage is parked in ResumeStage and restored on
// re-entry.
type Artifact struct {
	Topic       Topic  `json:"current_state"`
	Stage       *Stage `json:"degree_stage,omitempty"`
	ResumeStage *Stage `json:"resume_stage,omitempty"`

	Major         string   `json:"major,omitempty"`
	DegreeType    string   `json:"degree_type,omitempty"`
	Concentration string   `json:"concentration,omitempty"`
	Minors        []string `json:"minor,omitempty"`

	StartTerm   *Term `json:"start_term,omitempty"`
	CurrentTerm *Term `json:"current_term,omitempty"`

	PreferredCoursesPerSemester *int `json:"preferred_courses_per_semester,omitempty"`
	MinCourses                  *int `json:"min_courses_per_semester,omitempty"`
	MaxCourses                  *int `json:"max_courses_per_semester,omitempty"`
	TotalCreditsNeeded          *int `json:"total_credits_needed,omitempty"`

	TimePreference  TimePreference `json:"time_preference,omitempty"`
	SummerAvailable *bool          `json:"summer_available,omitempty"`

	CareerGoals     []string `json:"career_goals,omitempty"`
	CoursesSelected []string `json:"courses_selected,omitempty"`

	LastIntent string `json:"last_intent,omitempty"`
}

// NewArtifact returns an empty artifact in the INITIAL topic.
func NewArtifact() *Artifact {
	return &Artifact{Topic: TopicInitial}
}

// CurrentStage returns the active degree-planning stage, or "" outside
// degree planning.
func (a *Artifact) CurrentStage() Stage {
	if a.Topic != TopicDegreePlanning || a.Stage == nil {
		return ""
	}
	return *a.Stage
}

// SetStage sets the active stage. It is a no-op outside degree planning.
func (a *Artifact) SetStage(s Stage) {
	if a.Topic != TopicDegreePlanning {
		return
	}
	a.Stage = &s
}

// EnterDegreePlanning switches the topic to degree planning and restores the
// parked stage, starting at MAIN_ADVISOR when there is none.
func (a *Artifact) EnterDegreePlanning() {
	a.Topic = TopicDegreePlanning
	switch {
	case a.Stage != nil:
	case a.ResumeStage != nil:
		a.Stage = a.ResumeStage
	default:
		s := StageMainAdvisor
		a.Stage = &s
	}
	a.ResumeStage = nil
}

// LeaveDegreePlanning switches to topic t and parks the current stage.
func (a *Artifact) LeaveDegreePlanning(t Topic) {
	if a.Stage != nil {
		a.ResumeStage = a.Stage
		a.Stage = nil
	}
	a.Topic = t
}

// StageConsistent reports whether Stage is set exactly when the topic is
// degree planning.
func (a *Artifact) StageConsistent() bool {
	return (a.Stage != nil) == (a.Topic == TopicDegreePlanning)
}

// ResetMajor clears everything tied to the declared major. It is the only
// path through which the append-only collections may shrink, besides
// ClearCourses.
func (a *Artifact) ResetMajor() {
	a.Major = ""
	a.DegreeType = ""
	a.Concentration = ""
	a.Minors = nil
	a.CareerGoals = nil
	a.CoursesSelected = nil
	a.TotalCreditsNeeded = nil
}

// ClearCourses removes every selected course.
func (a *Artifact) ClearCourses() {
	a.CoursesSelected = nil
}

// Clone returns a deep copy of the artifact.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	c.Stage = clonePtr(a.Stage)
	c.ResumeStage = clonePtr(a.ResumeStage)
	c.StartTerm = clonePtr(a.StartTerm)
	c.CurrentTerm = clonePtr(a.CurrentTerm)
	c.PreferredCoursesPerSemester = clonePtr(a.PreferredCoursesPerSemester)
	c.MinCourses = clonePtr(a.MinCourses)
	c.MaxCourses = clonePtr(a.MaxCourses)
	c.TotalCreditsNeeded = clonePtr(a.TotalCreditsNeeded)
	c.SummerAvailable = clonePtr(a.SummerAvailable)
	c.Minors = slices.Clone(a.Minors)
	c.CareerGoals = slices.Clone(a.CareerGoals)
	c.CoursesSelected = slices.Clone(a.CoursesSelected)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// AppendUnique appends the items not already present in list. Comparison is
// case-insensitive and ignores surrounding whitespace; blank items are
// dropped. The first spelling seen wins.
func AppendUnique(list []string, items ...string) ([]string, int) {
	added := 0
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if slices.ContainsFunc(list, func(s string) bool { return strings.EqualFold(s, item) }) {
			continue
		}
		list = append(list, item)
		added++
	}
	return list, added
}
