package coach

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/interview-coach/internal/resilience/failure"
)

const (
	maxResumeRunes  = 50000
	maxAnswerRunes  = 10000
	defaultCount    = 5
	maxCount        = 20
	defaultLevel    = "intermediate"
	defaultDiff     = "medium"
	unspecifiedRole = "not specified"
)

var difficulties = []string{"easy", "medium", "hard"}

type ResumeAnalysisInput struct {
	Resume     string `mapstructure:"resume"`
	TargetRole string `mapstructure:"targetRole"`
}

type ContentInput struct {
	Topic string `mapstructure:"topic"`
	Level string `mapstructure:"level"`
}

type InterviewInput struct {
	Role       string   `mapstructure:"role"`
	Difficulty string   `mapstructure:"difficulty"`
	Count      int      `mapstructure:"count"`
	Focus      []string `mapstructure:"focus"`
}

type EvaluationInput struct {
	Role     string `mapstructure:"role"`
	Question string `mapstructure:"question"`
	Answer   string `mapstructure:"answer"`
}

type AssessmentInput struct {
	Skill      string `mapstructure:"skill"`
	Difficulty string `mapstructure:"difficulty"`
	Count      int    `mapstructure:"count"`
}

// decodeParams fills out from a loosely typed parameter map, as received from
// a JSON body or interactive prompts. Unknown keys are rejected.
func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(params); err != nil {
		return invalid("malformed parameters: %v", err)
	}
	return nil
}

func (in *ResumeAnalysisInput) normalize() error {
	in.Resume = strings.TrimSpace(in.Resume)
	in.TargetRole = strings.TrimSpace(in.TargetRole)
	if in.Resume == "" {
		return invalid("resume text is required")
	}
	if utf8.RuneCountInString(in.Resume) > maxResumeRunes {
		return invalid("resume text is longer than %d characters", maxResumeRunes)
	}
	return nil
}

func (in *ContentInput) normalize() error {
	in.Topic = strings.TrimSpace(in.Topic)
	in.Level = strings.ToLower(strings.TrimSpace(in.Level))
	if in.Topic == "" {
		return invalid("topic is required")
	}
	if in.Level == "" {
		in.Level = defaultLevel
	}
	return nil
}

func (in *InterviewInput) normalize() error {
	in.Role = strings.TrimSpace(in.Role)
	if in.Role == "" {
		return invalid("role is required")
	}
	difficulty, err := normalizeDifficulty(in.Difficulty)
	if err != nil {
		return err
	}
	in.Difficulty = difficulty
	if in.Count, err = normalizeCount(in.Count); err != nil {
		return err
	}

	focus := make([]string, 0, len(in.Focus))
	for _, f := range in.Focus {
		if f = strings.TrimSpace(f); f != "" {
			focus = append(focus, f)
		}
	}
	in.Focus = focus
	return nil
}

func (in *EvaluationInput) normalize() error {
	in.Role = strings.TrimSpace(in.Role)
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	switch {
	case in.Question == "":
		return invalid("question is required")
	case in.Answer == "":
		return invalid("answer is required")
	case utf8.RuneCountInString(in.Answer) > maxAnswerRunes:
		return invalid("answer is longer than %d characters", maxAnswerRunes)
	}
	return nil
}

func (in *AssessmentInput) normalize() error {
	in.Skill = strings.TrimSpace(in.Skill)
	if in.Skill == "" {
		return invalid("skill is required")
	}
	difficulty, err := normalizeDifficulty(in.Difficulty)
	if err != nil {
		return err
	}
	in.Difficulty = difficulty
	in.Count, err = normalizeCount(in.Count)
	return err
}

func normalizeDifficulty(d string) (string, error) {
	d = strings.ToLower(strings.TrimSpace(d))
	if d == "" {
		return defaultDiff, nil
	}
	for _, known := range difficulties {
		if d == known {
			return d, nil
		}
	}
	return "", invalid("difficulty must be one of %s", strings.Join(difficulties, ", "))
}

func normalizeCount(n int) (int, error) {
	switch {
	case n == 0:
		return defaultCount, nil
	case n < 0 || n > maxCount:
		return 0, invalid("count must be between 1 and %d", maxCount)
	default:
		return n, nil
	}
}

func invalid(format string, args ...any) error {
	return failure.New(failure.CategoryInvalidInput, fmt.Sprintf(format, args...))
}
