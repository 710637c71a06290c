package advisor

import "github.com/ashureev/advisor/internal/domain"

// ResponseMode selects the response oracle's behavior for a turn.
type ResponseMode string

const (
	ModeInitial           ResponseMode = "initial"
	ModeGeneral           ResponseMode = "general"
	ModeCourseQuestion    ResponseMode = "course_question"
	ModeMainDegreeAdvisor ResponseMode = "main_degree_advisor"
	ModeBasicInfo         ResponseMode = "basic_info_gather"
	ModeCareerGoals       ResponseMode = "career_goal_gather"
	ModeRequirements      ResponseMode = "requirements_gather"
)

// ResponseModeFor picks the mode from the artifact's topic and stage.
func ResponseModeFor(a *domain.Artifact) ResponseMode {
	switch a.Topic {
	case domain.TopicDegreePlanning:
		switch a.CurrentStage() {
		case domain.StageBasicInfo:
			return ModeBasicInfo
		case domain.StageCareerGoals:
			return ModeCareerGoals
		case domain.StageRequirements:
			return ModeRequirements
		default:
			return ModeMainDegreeAdvisor
		}
	case domain.TopicCourseQuestion:
		return ModeCourseQuestion
	case domain.TopicGeneralQA:
		return ModeGeneral
	default:
		return ModeInitial
	}
}
