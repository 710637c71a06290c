package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ashureev/advisor/internal/domain"
)

// ToolParameter describes one argument of a tool.
type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Enum        []string `json:"enum,omitempty"`
}

// ToolSpec is the description of a tool offered to the response oracle.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  []ToolParameter `json:"parameters"`
}

// ToolResult is returned to the response oracle after a tool call. Failures
// are reported in Text rather than as errors.
type ToolResult struct {
	Success bool     `json:"success"`
	Text    string   `json:"text"`
	Changed []string `json:"changed,omitempty"`
}

// ToolCall records one invocation made during a turn.
type ToolCall struct {
	Name   string         `json:"name"`
	Args   map[string]any `json:"args,omitempty"`
	Result ToolResult     `json:"result"`
}

// ToolInvoker is the tool surface the response oracle sees.
type ToolInvoker interface {
	Tools() []ToolSpec
	Invoke(ctx context.Context, name string, args map[string]any) ToolResult
	// Snapshot returns a copy of the artifact as the tools have left it.
	Snapshot() *domain.Artifact
}

type tool struct {
	spec ToolSpec
	run  func(t *Toolbox, args map[string]any) (ToolResult, error)
}

// Toolbox exposes the artifact mutators for a single turn. It is not safe
// for concurrent use; a turn owns its toolbox.
type Toolbox struct {
	artifact *domain.Artifact
	logger   *slog.Logger
	calls    []ToolCall
	mutated  bool
}

// NewToolbox returns a toolbox mutating a.
func NewToolbox(a *domain.Artifact, logger *slog.Logger) *Toolbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Toolbox{artifact: a, logger: logger}
}

// Tools lists the available tools.
func (t *Toolbox) Tools() []ToolSpec {
	specs := make([]ToolSpec, 0, len(toolRegistry))
	for _, tl := range toolRegistry {
		specs = append(specs, tl.spec)
	}
	return specs
}

// Invoke runs the named tool.
func (t *Toolbox) Invoke(ctx context.Context, name string, args map[string]any) ToolResult {
	var res ToolResult
	if err := ctx.Err(); err != nil {
		res = toolFailure(err)
	} else if tl, ok := toolIndex[name]; !ok {
		res = toolFailure(fmt.Errorf("unknown tool %q", name))
	} else {
		r, err := tl.run(t, args)
		if err != nil {
			res = toolFailure(err)
		} else {
			res = r
		}
	}

	if !res.Success {
		t.logger.Warn("Tool invocation failed", "tool", name, "reason", res.Text)
	}
	if len(res.Changed) > 0 {
		t.mutated = true
	}
	t.calls = append(t.calls, ToolCall{Name: name, Args: args, Result: res})
	return res
}

// Snapshot returns a copy of the artifact including tool changes.
func (t *Toolbox) Snapshot() *domain.Artifact {
	return t.artifact.Clone()
}

// Calls returns the invocations made so far.
func (t *Toolbox) Calls() []ToolCall {
	return t.calls
}

// Mutated reports whether any tool changed the artifact.
func (t *Toolbox) Mutated() bool {
	return t.mutated
}

func toolFailure(err error) ToolResult {
	return ToolResult{Text: fmt.Errorf("%w: %w", ErrToolInvocation, err).Error()}
}

// apply validates rec and merges it with the ordinary merge rules.
func (t *Toolbox) apply(rec *ExtractionRecord) (ToolResult, error) {
	if err := validatorInstance().Struct(rec); err != nil {
		return ToolResult{}, err
	}
	changed := Merge(t.artifact, rec)
	if len(changed) == 0 {
		return ToolResult{Success: true, Text: "no changes; the profile already has these values"}, nil
	}
	return ToolResult{
		Success: true,
		Text:    "updated " + strings.Join(changed, ", "),
		Changed: changed,
	}, nil
}

// decodeArgs converts the loosely typed argument map into dst and validates it.
func decodeArgs(args map[string]any, dst any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode arguments: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := validatorInstance().Struct(dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

var errNotConfirmed = errors.New("the user has not confirmed this reset; ask for confirmation and call again with confirmed=true")

type majorInfoArgs struct {
	Major         *string `json:"major" validate:"omitempty,min=1,max=120"`
	DegreeType    *string `json:"degree_type" validate:"omitempty,min=1,max=40"`
	Concentration *string `json:"concentration" validate:"omitempty,min=1,max=120"`
}

type minorInfoArgs struct {
	Minor string `json:"minor" validate:"required,max=120"`
}

type termInfoArgs struct {
	Kind   string `json:"kind" validate:"required,oneof=start current"`
	Season string `json:"season" validate:"required"`
	Year   int    `json:"year" validate:"required,min=1900,max=2200"`
}

type courseLoadArgs struct {
	Preferred *int `json:"preferred"`
	Min       *int `json:"min"`
	Max       *int `json:"max"`
}

type timePreferenceArgs struct {
	Value string `json:"value" validate:"required"`
}

type summerArgs struct {
	Available *bool `json:"available" validate:"required"`
}

type careerGoalsArgs struct {
	Goals []string `json:"goals" validate:"required,min=1,dive,min=1,max=200"`
}

type creditsArgs struct {
	Credits int `json:"credits" validate:"required,min=1,max=250"`
}

type confirmArgs struct {
	Confirmed bool `json:"confirmed"`
}

type addCoursesArgs struct {
	Courses any `json:"courses"`
}

var toolRegistry = []tool{
	{
		spec: ToolSpec{
			Name:        "major_info",
			Description: "Record the student's major, degree type and concentration.",
			Parameters: []ToolParameter{
				{Name: "major", Type: "string", Description: "Declared or intended major"},
				{Name: "degree_type", Type: "string", Description: "Degree type such as BS or BA"},
				{Name: "concentration", Type: "string", Description: "Concentration within the major"},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in majorInfoArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			if in.Major == nil && in.DegreeType == nil && in.Concentration == nil {
				return ToolResult{}, errors.New("at least one of major, degree_type or concentration is required")
			}
			return t.apply(&ExtractionRecord{Major: in.Major, DegreeType: in.DegreeType, Concentration: in.Concentration})
		},
	},
	{
		spec: ToolSpec{
			Name:        "minor_info",
			Description: "Add a minor the student is pursuing.",
			Parameters: []ToolParameter{
				{Name: "minor", Type: "string", Description: "Minor name", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in minorInfoArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			return t.apply(&ExtractionRecord{Minors: []string{in.Minor}})
		},
	},
	{
		spec: ToolSpec{
			Name:        "term_info",
			Description: "Record the student's start term or current term.",
			Parameters: []ToolParameter{
				{Name: "kind", Type: "string", Description: "Which term to set", Required: true, Enum: []string{"start", "current"}},
				{Name: "season", Type: "string", Description: "Term season", Required: true, Enum: []string{"Fall", "Spring", "Summer"}},
				{Name: "year", Type: "integer", Description: "Four-digit year", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in termInfoArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			season, ok := domain.ParseSeason(in.Season)
			if !ok {
				return ToolResult{}, fmt.Errorf("unknown season %q", in.Season)
			}
			term := &domain.Term{Season: season, Year: in.Year}
			if in.Kind == "start" {
				return t.apply(&ExtractionRecord{StartTerm: term})
			}
			return t.apply(&ExtractionRecord{CurrentTerm: term})
		},
	},
	{
		spec: ToolSpec{
			Name:        "course_load",
			Description: "Record how many courses per semester the student prefers, with optional bounds.",
			Parameters: []ToolParameter{
				{Name: "preferred", Type: "integer", Description: "Preferred courses per semester"},
				{Name: "min", Type: "integer", Description: "Minimum courses per semester"},
				{Name: "max", Type: "integer", Description: "Maximum courses per semester"},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in courseLoadArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			if in.Preferred == nil && in.Min == nil && in.Max == nil {
				return ToolResult{}, errors.New("at least one of preferred, min or max is required")
			}
			return t.apply(&ExtractionRecord{PreferredCoursesPerSemester: in.Preferred, MinCourses: in.Min, MaxCourses: in.Max})
		},
	},
	{
		spec: ToolSpec{
			Name:        "time_preference",
			Description: "Record the student's preferred time of day for classes.",
			Parameters: []ToolParameter{
				{Name: "value", Type: "string", Required: true, Description: "Preferred time of day",
					Enum: []string{"morning", "afternoon", "evening", "no_preference"}},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in timePreferenceArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			tp, ok := domain.ParseTimePreference(in.Value)
			if !ok {
				return ToolResult{}, fmt.Errorf("unknown time preference %q", in.Value)
			}
			return t.apply(&ExtractionRecord{TimePreference: &tp})
		},
	},
	{
		spec: ToolSpec{
			Name:        "summer_availability",
			Description: "Record whether the student can take summer classes.",
			Parameters: []ToolParameter{
				{Name: "available", Type: "boolean", Description: "Summer availability", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in summerArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			return t.apply(&ExtractionRecord{SummerAvailable: in.Available})
		},
	},
	{
		spec: ToolSpec{
			Name:        "career_goals",
			Description: "Add career goals the student mentioned.",
			Parameters: []ToolParameter{
				{Name: "goals", Type: "array", Description: "Career goals", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in careerGoalsArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			return t.apply(&ExtractionRecord{CareerGoals: in.Goals})
		},
	},
	{
		spec: ToolSpec{
			Name:        "credits_needed",
			Description: "Record the total credits the student needs to graduate.",
			Parameters: []ToolParameter{
				{Name: "credits", Type: "integer", Description: "Total credits needed", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in creditsArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			return t.apply(&ExtractionRecord{TotalCreditsNeeded: &in.Credits})
		},
	},
	{
		spec: ToolSpec{
			Name: "clear_student_major_info",
			Description: "Reset the major and everything tied to it (degree type, concentration, minors, " +
				"career goals, selected courses, credits needed). Only after the user confirms a change of major.",
			Parameters: []ToolParameter{
				{Name: "confirmed", Type: "boolean", Description: "The user explicitly confirmed the reset", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in confirmArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			if !in.Confirmed {
				return ToolResult{}, errNotConfirmed
			}
			t.artifact.ResetMajor()
			return ToolResult{
				Success: true,
				Text:    "cleared major information",
				Changed: []string{"major", "degree_type", "concentration", "minor", "career_goals", "courses_selected", "total_credits_needed"},
			}, nil
		},
	},
	{
		spec: ToolSpec{
			Name:        "add_courses",
			Description: "Add recommended or selected courses, e.g. \"COMP 110, MATH 231\" or [\"COMP 110\", \"MATH 231\"].",
			Parameters: []ToolParameter{
				{Name: "courses", Type: "string", Description: "A list of courses, or course codes separated by commas or semicolons", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in addCoursesArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			courses, err := parseCourseList("courses", in.Courses)
			if err != nil {
				return ToolResult{}, err
			}
			if len(courses) == 0 {
				return ToolResult{}, errors.New("no course codes found")
			}
			return t.apply(&ExtractionRecord{CoursesSelected: courses})
		},
	},
	{
		spec: ToolSpec{
			Name:        "clear_all_courses",
			Description: "Remove every selected course. Only after the user confirms.",
			Parameters: []ToolParameter{
				{Name: "confirmed", Type: "boolean", Description: "The user explicitly confirmed clearing courses", Required: true},
			},
		},
		run: func(t *Toolbox, args map[string]any) (ToolResult, error) {
			var in confirmArgs
			if err := decodeArgs(args, &in); err != nil {
				return ToolResult{}, err
			}
			if !in.Confirmed {
				return ToolResult{}, errNotConfirmed
			}
			t.artifact.ClearCourses()
			return ToolResult{Success: true, Text: "cleared all courses", Changed: []string{"courses_selected"}}, nil
		},
	},
	{
		spec: ToolSpec{
			Name:        "get_user_info",
			Description: "Return the student's current profile.",
		},
		run: func(t *Toolbox, _ map[string]any) (ToolResult, error) {
			data, err := json.Marshal(t.artifact)
			if err != nil {
				return ToolResult{}, fmt.Errorf("encode profile: %w", err)
			}
			return ToolResult{Success: true, Text: string(data)}, nil
		},
	},
}

var toolIndex = func() map[string]tool {
	idx := make(map[string]tool, len(toolRegistry))
	for _, tl := range toolRegistry {
		idx[tl.spec.Name] = tl
	}
	return idx
}()
