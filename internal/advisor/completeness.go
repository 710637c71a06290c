package advisor

import (
	"math"

	"github.com/ashureev/advisor/internal/domain"
)

// Completeness lists the profile fields still missing for the active topic.
type Completeness struct {
	Missing []string `json:"missing_fields"`
	Percent int      `json:"percent_complete"`
}

type requiredField struct {
	name    string
	present func(a *domain.Artifact) bool
}

var (
	fieldMajor       = requiredField{"major", func(a *domain.Artifact) bool { return a.Major != "" }}
	fieldDegreeType  = requiredField{"degree_type", func(a *domain.Artifact) bool { return a.DegreeType != "" }}
	fieldCurrentTerm = requiredField{"current_term", func(a *domain.Artifact) bool { return a.CurrentTerm != nil }}
	fieldStartTerm   = requiredField{"start_term", func(a *domain.Artifact) bool { return a.StartTerm != nil }}
	fieldCourseLoad  = requiredField{"preferred_courses_per_semester", func(a *domain.Artifact) bool { return a.PreferredCoursesPerSemester != nil }}
	fieldCareerGoals = requiredField{"career_goals", func(a *domain.Artifact) bool { return len(a.CareerGoals) > 0 }}
	fieldTimePref    = requiredField{"time_preference", func(a *domain.Artifact) bool { return a.TimePreference != "" }}

	degreePlanningFields = []requiredField{fieldMajor, fieldDegreeType, fieldCurrentTerm, fieldStartTerm, fieldCourseLoad, fieldCareerGoals}
	courseQuestionFields = []requiredField{fieldMajor, fieldCurrentTerm, fieldTimePref, fieldCourseLoad}
)

// Evaluate reports which required fields a is missing for topic. Degree
// planning has its own field set; every other topic uses the course-question
// set.
func Evaluate(topic domain.Topic, a *domain.Artifact) Completeness {
	fields := courseQuestionFields
	if topic == domain.TopicDegreePlanning {
		fields = degreePlanningFields
	}

	missing := make([]string, 0, len(fields))
	for _, f := range fields {
		if !f.present(a) {
			missing = append(missing, f.name)
		}
	}
	done := len(fields) - len(missing)
	return Completeness{
		Missing: missing,
		Percent: int(math.Round(float64(done) / float64(len(fields)) * 100)),
	}
}
