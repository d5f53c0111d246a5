package ai

import "context"

// Operation names a unit of model-backed work with a fixed result shape.
type Operation string

const (
	OpResumeAnalysis       Operation = "resume_analysis"
	OpContentGeneration    Operation = "content_generation"
	OpInterviewGeneration  Operation = "interview_generation"
	OpInterviewEvaluation  Operation = "interview_evaluation"
	OpAssessmentGeneration Operation = "assessment_generation"
)

// Operations lists every known operation.
var Operations = []Operation{
	OpResumeAnalysis,
	OpContentGeneration,
	OpInterviewGeneration,
	OpInterviewEvaluation,
	OpAssessmentGeneration,
}

// Known reports whether op is one of Operations.
func (op Operation) Known() bool {
	for _, known := range Operations {
		if op == known {
			return true
		}
	}
	return false
}

func (op Operation) String() string { return string(op) }

// Generator is the inference backend as seen by the rest of the application.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
	Model() string
}
