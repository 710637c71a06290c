// Package domain defines the advising session model: topics, stages, the
// student artifact and the message log.
package domain

import "strings"

// Topic is the top-level conversation state.
type Topic string

const (
	TopicInitial        Topic = "INITIAL"
	TopicDegreePlanning Topic = "DEGREE_PLANNING"
	TopicCourseQuestion Topic = "COURSE_QUESTION"
	TopicGeneralQA      Topic = "GENERAL_QA"
)

// Topics lists every topic in declaration order.
var Topics = []Topic{TopicInitial, TopicDegreePlanning, TopicCourseQuestion, TopicGeneralQA}

// ParseIntent maps an intent oracle label onto a topic. Labels are matched
// case-insensitively in both the snake_case and the enum spelling.
func ParseIntent(label string) (Topic, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "initial":
		return TopicInitial, true
	case "degree_planning":
		return TopicDegreePlanning, true
	case "course_question":
		return TopicCourseQuestion, true
	case "general_qa":
		return TopicGeneralQA, true
	}
	return "", false
}

// Label returns the lower-case intent label for the topic.
func (t Topic) Label() string {
	return strings.ToLower(string(t))
}

// Stage is a degree-planning sub-stage.
type Stage string

const (
	StageMainAdvisor  Stage = "MAIN_ADVISOR"
	StageBasicInfo    Stage = "BASIC_INFO"
	StageCareerGoals  Stage = "CAREER_GOALS"
	StageRequirements Stage = "REQUIREMENTS"
	StageCompleted    Stage = "COMPLETED"
)

var stageOrder = map[Stage]int{
	StageMainAdvisor:  0,
	StageBasicInfo:    1,
	StageCareerGoals:  2,
	StageRequirements: 3,
	StageCompleted:    4,
}

// ParseStage maps a stage oracle label onto a stage.
func ParseStage(label string) (Stage, bool) {
	s := Stage(strings.ToUpper(strings.TrimSpace(label)))
	if _, ok := stageOrder[s]; !ok {
		return "", false
	}
	return s, true
}

// Before reports whether s comes strictly before other on the forward path.
func (s Stage) Before(other Stage) bool {
	return stageOrder[s] < stageOrder[other]
}

// RetrievalKind is the per-turn retrieval decision.
type RetrievalKind string

const (
	RetrievalNone     RetrievalKind = "NONE"
	RetrievalInternal RetrievalKind = "INTERNAL_KB"
	RetrievalWeb      RetrievalKind = "EXTERNAL_WEB"
)

// ParseRetrievalKind accepts the enum spelling as well as the short
// "rag"/"web"/"none" labels.
func ParseRetrievalKind(label string) (RetrievalKind, bool) {
	switch strings.ToUpper(strings.TrimSpace(label)) {
	case "NONE", "":
		return RetrievalNone, true
	case "INTERNAL_KB", "RAG", "KB":
		return RetrievalInternal, true
	case "EXTERNAL_WEB", "WEB":
		return RetrievalWeb, true
	}
	return "", false
}

// TimePreference is the preferred time of day for classes.
type TimePreference string

const (
	TimeMorning      TimePreference = "morning"
	TimeAfternoon    TimePreference = "afternoon"
	TimeEvening      TimePreference = "evening"
	TimeNoPreference TimePreference = "no_preference"
)

// ParseTimePreference normalizes free-form spellings such as "No Preference".
func ParseTimePreference(v string) (TimePreference, bool) {
	norm := strings.ToLower(strings.TrimSpace(v))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	switch TimePreference(norm) {
	case TimeMorning, TimeAfternoon, TimeEvening, TimeNoPreference:
		return TimePreference(norm), true
	}
	if norm == "none" || norm == "any" {
		return TimeNoPreference, true
	}
	return "", false
}

// Season is an academic term season.
type Season string

const (
	SeasonFall   Season = "Fall"
	SeasonSpring Season = "Spring"
	SeasonSummer Season = "Summer"
)

// ParseSeason matches a season name case-insensitively.
func ParseSeason(v string) (Season, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "fall", "autumn":
		return SeasonFall, true
	case "spring":
		return SeasonSpring, true
	case "summer":
		return SeasonSummer, true
	}
	return "", false
}
