package advisor

import (
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// validatorInstance returns the shared validator used at the extraction and
// tool-argument boundaries.
func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterStructValidation(courseLoadValidation, ExtractionRecord{})
		validate = v
	})
	return validate
}

func courseLoadValidation(sl validator.StructLevel) {
	rec := sl.Current().Interface().(ExtractionRecord)
	if rec.MinCourses != nil && rec.MaxCourses != nil && *rec.MinCourses > *rec.MaxCourses {
		sl.ReportError(rec.MinCourses, "MinCourses", "MinCourses", "ltefield", "MaxCourses")
	}
	if rec.PreferredCoursesPerSemester == nil {
		return
	}
	if rec.MinCourses != nil && *rec.PreferredCoursesPerSemester < *rec.MinCourses {
		sl.ReportError(rec.PreferredCoursesPerSemester, "PreferredCoursesPerSemester", "PreferredCoursesPerSemester", "gtefield", "MinCourses")
	}
	if rec.MaxCourses != nil && *rec.PreferredCoursesPerSemester > *rec.MaxCourses {
		sl.ReportError(rec.PreferredCoursesPerSemester, "PreferredCoursesPerSemester", "PreferredCoursesPerSemester", "ltefield", "MaxCourses")
	}
}
