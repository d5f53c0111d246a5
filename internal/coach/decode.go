package coach

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spigell/interview-coach/internal/ai"
)

var errNoJSONObject = errors.New("response does not contain a JSON object")

// extractJSON strips markdown fences and surrounding prose from a model reply.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end < start {
		return raw
	}
	return raw[start : end+1]
}

func decodeObject(raw string) (map[string]any, error) {
	cleaned := extractJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, errNoJSONObject
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return data, nil
}

func decodeTyped[T any](raw string) (*T, error) {
	cleaned := extractJSON(raw)
	if !strings.HasPrefix(cleaned, "{") {
		return nil, errNoJSONObject
	}

	var out T
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("parse model response: %w", err)
	}
	return &out, nil
}

func resumeAnalysisDecoder(in ResumeAnalysisInput) func(string) (any, error) {
	return func(text string) (any, error) {
		data, err := decodeObject(text)
		if err != nil {
			return nil, err
		}

		score := coerceFloat(data["score"])
		if math.IsNaN(score) {
			return nil, errors.New("resume analysis has no score")
		}

		out := &ai.ResumeAnalysis{
			TargetRole:      coerceString(data["targetRole"]),
			Summary:         coerceString(data["summary"]),
			Score:           clamp(score, 0, 100),
			Strengths:       coerceStrings(data["strengths"]),
			Recommendations: coerceStrings(data["recommendations"]),
		}
		if out.Summary == "" {
			return nil, errors.New("resume analysis has no summary")
		}
		if out.TargetRole == "" {
			out.TargetRole = in.TargetRole
		}
		if gaps, ok := data["skillGaps"]; ok && gaps != nil {
			raw, err := json.Marshal(gaps)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(raw, &out.SkillGaps); err != nil {
				return nil, fmt.Errorf("parse skill gaps: %w", err)
			}
		}
		if out.SkillGaps == nil {
			out.SkillGaps = []ai.SkillGap{}
		}
		return out, nil
	}
}

func contentDecoder(in ContentInput) func(string) (any, error) {
	return func(text string) (any, error) {
		out, err := decodeTyped[ai.GeneratedContent](text)
		if err != nil {
			return nil, err
		}
		if len(out.Sections) == 0 {
			return nil, errors.New("generated content has no sections")
		}
		if strings.TrimSpace(out.Topic) == "" {
			out.Topic = in.Topic
		}
		if out.KeyPoints == nil {
			out.KeyPoints = []string{}
		}
		return out, nil
	}
}

func interviewDecoder(in InterviewInput) func(string) (any, error) {
	return func(text string) (any, error) {
		out, err := decodeTyped[ai.InterviewQuestions](text)
		if err != nil {
			return nil, err
		}

		questions := out.Questions[:0]
		for _, q := range out.Questions {
			if q.Question = strings.TrimSpace(q.Question); q.Question == "" {
				continue
			}
			questions = append(questions, q)
		}
		if len(questions) == 0 {
			return nil, errors.New("interview has no questions")
		}
		if len(questions) > in.Count {
			questions = questions[:in.Count]
		}
		for i := range questions {
			questions[i].ID = i + 1
			if questions[i].Difficulty == "" {
				questions[i].Difficulty = in.Difficulty
			}
			if questions[i].ExpectedPoints == nil {
				questions[i].ExpectedPoints = []string{}
			}
		}

		out.Questions = questions
		if strings.TrimSpace(out.Role) == "" {
			out.Role = in.Role
		}
		return out, nil
	}
}

func evaluationDecoder(in EvaluationInput) func(string) (any, error) {
	return func(text string) (any, error) {
		data, err := decodeObject(text)
		if err != nil {
			return nil, err
		}

		score := coerceFloat(data["score"])
		if math.IsNaN(score) {
			return nil, errors.New("evaluation has no score")
		}

		out := &ai.AnswerEvaluation{
			Question:     in.Question,
			Score:        clamp(score, 0, 10),
			Feedback:     coerceString(data["feedback"]),
			Strengths:    coerceStrings(data["strengths"]),
			Improvements: coerceStrings(data["improvements"]),
		}
		if out.Feedback == "" {
			return nil, errors.New("evaluation has no feedback")
		}
		return out, nil
	}
}

func assessmentDecoder(in AssessmentInput) func(string) (any, error) {
	return func(text string) (any, error) {
		out, err := decodeTyped[ai.Assessment](text)
		if err != nil {
			return nil, err
		}
		if len(out.Questions) == 0 {
			return nil, errors.New("assessment has no questions")
		}
		if len(out.Questions) > in.Count {
			out.Questions = out.Questions[:in.Count]
		}
		for i, q := range out.Questions {
			if len(q.Options) < 2 {
				return nil, fmt.Errorf("assessment question %d has fewer than two options", i+1)
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				return nil, fmt.Errorf("assessment question %d has correct index %d out of range", i+1, q.CorrectIndex)
			}
			out.Questions[i].ID = i + 1
		}
		if strings.TrimSpace(out.Skill) == "" {
			out.Skill = in.Skill
		}
		return out, nil
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func coerceFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case string:
		trimmed := strings.TrimSpace(val)
		trimmed = strings.TrimSuffix(trimmed, "%")
		if idx := strings.Index(trimmed, "/"); idx != -1 {
			trimmed = strings.TrimSpace(trimmed[:idx])
		}
		if trimmed == "" {
			return math.NaN()
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case fmt.Stringer:
		return strings.TrimSpace(val.String())
	default:
		if v == nil {
			return ""
		}
		bytes, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(bytes)
	}
}

func coerceStrings(v any) []string {
	out := []string{}
	switch val := v.(type) {
	case []any:
		for _, item := range val {
			if s := coerceString(item); s != "" {
				out = append(out, s)
			}
		}
	case string:
		if s := strings.TrimSpace(val); s != "" {
			out = append(out, s)
		}
	}
	return out
}
