package advisor

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ashureev/advisor/internal/domain"
)

// ExtractionRecord is a validated partial update of the artifact. A nil or
// empty field carries no information and never erases artifact data.
type ExtractionRecord struct {
	Major         *string  `validate:"omitempty,min=1,max=120"`
	DegreeType    *string  `validate:"omitempty,min=1,max=40"`
	Concentration *string  `validate:"omitempty,min=1,max=120"`
	Minors        []string `validate:"omitempty,dive,min=1,max=120"`

	StartTerm   *domain.Term `validate:"omitempty"`
	CurrentTerm *domain.Term `validate:"omitempty"`

	PreferredCoursesPerSemester *int `validate:"omitempty,min=1,max=8"`
	MinCourses                  *int `validate:"omitempty,min=0,max=8"`
	MaxCourses                  *int `validate:"omitempty,min=1,max=8"`
	TotalCreditsNeeded          *int `validate:"omitempty,min=1,max=250"`

	TimePreference  *domain.TimePreference `validate:"omitempty,oneof=morning afternoon evening no_preference"`
	SummerAvailable *bool

	CareerGoals     []string `validate:"omitempty,dive,min=1,max=200"`
	CoursesSelected []string `validate:"omitempty,dive,min=1,max=120"`
}

// wireExtraction mirrors the oracle's JSON schema with loosely typed values.
type wireExtraction struct {
	CurrentState                any `json:"current_state"`
	DegreeType                  any `json:"degree_type"`
	Major                       any `json:"major"`
	Concentration               any `json:"concentration"`
	Minor                       any `json:"minor"`
	StartTerm                   any `json:"start_term"`
	CurrentTerm                 any `json:"current_term"`
	PreferredCoursesPerSemester any `json:"preferred_courses_per_semester"`
	MinCoursesPerSemester       any `json:"min_courses_per_semester"`
	MaxCoursesPerSemester       any `json:"max_courses_per_semester"`
	TimePreference              any `json:"time_preference"`
	SummerAvailable             any `json:"summer_available"`
	CareerGoals                 any `json:"career_goals"`
	TotalCreditsNeeded          any `json:"total_credits_needed"`
	CoursesSelected             any `json:"courses_selected"`
}

// ParseExtraction turns raw extraction oracle output into a validated record.
// Any decode, conversion or validation problem rejects the whole record.
func ParseExtraction(raw string) (*ExtractionRecord, error) {
	obj, err := extractJSONObject(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionParse, err)
	}

	var w wireExtraction
	if err := json.Unmarshal([]byte(obj), &w); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrExtractionParse, err)
	}

	rec, err := w.record()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionParse, err)
	}
	if err := validatorInstance().Struct(rec); err != nil {
		return nil, fmt.Errorf("%w: validate: %w", ErrExtractionParse, err)
	}
	return rec, nil
}

func (w wireExtraction) record() (*ExtractionRecord, error) {
	var (
		rec ExtractionRecord
		err error
	)
	if rec.Major, err = optString("major", w.Major); err != nil {
		return nil, err
	}
	if rec.DegreeType, err = optString("degree_type", w.DegreeType); err != nil {
		return nil, err
	}
	if rec.Concentration, err = optString("concentration", w.Concentration); err != nil {
		return nil, err
	}
	if rec.Minors, err = stringList("minor", w.Minor); err != nil {
		return nil, err
	}
	if rec.StartTerm, err = optTerm("start_term", w.StartTerm); err != nil {
		return nil, err
	}
	if rec.CurrentTerm, err = optTerm("current_term", w.CurrentTerm); err != nil {
		return nil, err
	}
	if rec.PreferredCoursesPerSemester, err = optInt("preferred_courses_per_semester", w.PreferredCoursesPerSemester); err != nil {
		return nil, err
	}
	if rec.MinCourses, err = optInt("min_courses_per_semester", w.MinCoursesPerSemester); err != nil {
		return nil, err
	}
	if rec.MaxCourses, err = optInt("max_courses_per_semester", w.MaxCoursesPerSemester); err != nil {
		return nil, err
	}
	if rec.TotalCreditsNeeded, err = optInt("total_credits_needed", w.TotalCreditsNeeded); err != nil {
		return nil, err
	}
	if rec.SummerAvailable, err = optBool("summer_available", w.SummerAvailable); err != nil {
		return nil, err
	}
	if rec.CareerGoals, err = stringList("career_goals", w.CareerGoals); err != nil {
		return nil, err
	}

	pref, err := optString("time_preference", w.TimePreference)
	if err != nil {
		return nil, err
	}
	if pref != nil {
		tp, ok := domain.ParseTimePreference(*pref)
		if !ok {
			return nil, fmt.Errorf("time_preference: unknown value %q", *pref)
		}
		rec.TimePreference = &tp
	}

	if rec.CoursesSelected, err = parseCourseList("courses_selected", w.CoursesSelected); err != nil {
		return nil, err
	}
	return &rec, nil
}

// IsEmpty reports whether the record carries no information.
func (r *ExtractionRecord) IsEmpty() bool {
	return r.Major == nil && r.DegreeType == nil && r.Concentration == nil &&
		len(r.Minors) == 0 && r.StartTerm == nil && r.CurrentTerm == nil &&
		r.PreferredCoursesPerSemester == nil && r.MinCourses == nil && r.MaxCourses == nil &&
		r.TotalCreditsNeeded == nil && r.TimePreference == nil && r.SummerAvailable == nil &&
		len(r.CareerGoals) == 0 && len(r.CoursesSelected) == 0
}

// Merge applies rec to a and returns the names of the fields that changed.
// Scalars are overwritten only by a differing non-nil value; list fields are
// unioned. The topic is never touched.
func Merge(a *domain.Artifact, rec *ExtractionRecord) []string {
	if rec == nil {
		return nil
	}
	var changed []string
	note := func(field string, did bool) {
		if did {
			changed = append(changed, field)
		}
	}

	note("major", mergeString(&a.Major, rec.Major))
	note("degree_type", mergeString(&a.DegreeType, rec.DegreeType))
	note("concentration", mergeString(&a.Concentration, rec.Concentration))
	note("start_term", mergePtr(&a.StartTerm, rec.StartTerm))
	note("current_term", mergePtr(&a.CurrentTerm, rec.CurrentTerm))
	note("preferred_courses_per_semester", mergePtr(&a.PreferredCoursesPerSemester, rec.PreferredCoursesPerSemester))
	note("min_courses_per_semester", mergePtr(&a.MinCourses, rec.MinCourses))
	note("max_courses_per_semester", mergePtr(&a.MaxCourses, rec.MaxCourses))
	note("total_credits_needed", mergePtr(&a.TotalCreditsNeeded, rec.TotalCreditsNeeded))
	note("summer_available", mergePtr(&a.SummerAvailable, rec.SummerAvailable))
	if rec.TimePreference != nil && *rec.TimePreference != a.TimePreference {
		a.TimePreference = *rec.TimePreference
		changed = append(changed, "time_preference")
	}

	var n int
	a.Minors, n = domain.AppendUnique(a.Minors, rec.Minors...)
	note("minor", n > 0)
	a.CareerGoals, n = domain.AppendUnique(a.CareerGoals, rec.CareerGoals...)
	note("career_goals", n > 0)

	courses := make([]string, 0, len(rec.CoursesSelected))
	for _, c := range rec.CoursesSelected {
		courses = append(courses, NormalizeCourseCode(c))
	}
	a.CoursesSelected, n = domain.AppendUnique(a.CoursesSelected, courses...)
	note("courses_selected", n > 0)

	return changed
}

func mergeString(dst *string, in *string) bool {
	if in == nil {
		return false
	}
	v := strings.TrimSpace(*in)
	if v == "" || v == *dst {
		return false
	}
	*dst = v
	return true
}

func mergePtr[T comparable](dst **T, in *T) bool {
	if in == nil {
		return false
	}
	if *dst != nil && **dst == *in {
		return false
	}
	v := *in
	*dst = &v
	return true
}

// blankValues are string placeholders models emit for "unknown".
var blankValues = []string{"", "null", "none", "n/a", "na", "unknown", "not specified"}

func isBlank(s string) bool {
	return slices.Contains(blankValues, strings.ToLower(strings.TrimSpace(s)))
}

func optString(field string, v any) (*string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if isBlank(t) {
			return nil, nil
		}
		s := strings.TrimSpace(t)
		return &s, nil
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s, nil
	}
	return nil, fmt.Errorf("%s: expected string, got %T", field, v)
}

func optInt(field string, v any) (*int, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case float64:
		if t != math.Trunc(t) {
			return nil, fmt.Errorf("%s: %v is not a whole number", field, t)
		}
		n := int(t)
		return &n, nil
	case string:
		if isBlank(t) {
			return nil, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", field, err)
		}
		return &n, nil
	}
	return nil, fmt.Errorf("%s: expected number, got %T", field, v)
}

func optBool(field string, v any) (*bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return &t, nil
	case string:
		if isBlank(t) {
			return nil, nil
		}
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "yes", "y":
			b := true
			return &b, nil
		case "false", "no", "n":
			b := false
			return &b, nil
		}
	}
	return nil, fmt.Errorf("%s: expected boolean, got %v", field, v)
}

func stringList(field string, v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if isBlank(t) {
			return nil, nil
		}
		return []string{strings.TrimSpace(t)}, nil
	case []any:
		out := make([]string, 0, len(t))
		for i, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%s[%d]: expected string, got %T", field, i, item)
			}
			if !isBlank(s) {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: expected list, got %T", field, v)
}

func optTerm(field string, v any) (*domain.Term, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		if isBlank(t) {
			return nil, nil
		}
		parts := strings.Fields(t)
		if len(parts) != 2 {
			return nil, fmt.Errorf("%s: cannot parse %q", field, t)
		}
		return buildTerm(field, parts[0], parts[1])
	case map[string]any:
		season, err := optString(field+".term", t["term"])
		if err != nil {
			return nil, err
		}
		year, err := optInt(field+".year", t["year"])
		if err != nil {
			return nil, err
		}
		if season == nil && year == nil {
			return nil, nil
		}
		if season == nil || year == nil {
			return nil, fmt.Errorf("%s: term and year are both required", field)
		}
		return buildTerm(field, *season, strconv.Itoa(*year))
	}
	return nil, fmt.Errorf("%s: expected object, got %T", field, v)
}

func buildTerm(field, season, year string) (*domain.Term, error) {
	s, ok := domain.ParseSeason(season)
	if !ok {
		return nil, fmt.Errorf("%s: unknown season %q", field, season)
	}
	y, err := strconv.Atoi(year)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &domain.Term{Season: s, Year: y}, nil
}
