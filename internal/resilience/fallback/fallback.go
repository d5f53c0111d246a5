package fallback

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/spigell/interview-coach/internal/ai"
)

//go:embed payloads.yaml
var payloadsYAML []byte

const (
	defaultQuestionCount = 5
	maxQuestionCount     = 20
)

// ErrNoFallback is returned for operations without a canned payload.
var ErrNoFallback = errors.New("no fallback available")

// Params lightly shapes a fallback payload after the caller's input.
type Params struct {
	Role       string `mapstructure:"role"`
	Topic      string `mapstructure:"topic"`
	Skill      string `mapstructure:"skill"`
	Question   string `mapstructure:"question"`
	Difficulty string `mapstructure:"difficulty"`
	Count      int    `mapstructure:"count"`
}

type document struct {
	Version              string                `yaml:"version"`
	ResumeAnalysis       *ai.ResumeAnalysis     `yaml:"resume_analysis"`
	ContentGeneration    *ai.GeneratedContent   `yaml:"content_generation"`
	InterviewGeneration  *ai.InterviewQuestions `yaml:"interview_generation"`
	InterviewEvaluation  *ai.AnswerEvaluation   `yaml:"interview_evaluation"`
	AssessmentGeneration *ai.Assessment         `yaml:"assessment_generation"`
}

// Provider serves deterministic substitute results. It never touches the
// network and its payloads are read-only after construction.
type Provider struct {
	doc document
}

// New loads the embedded payload document.
func New() (*Provider, error) {
	return Parse(payloadsYAML)
}

// Parse builds a provider from a YAML payload document.
func Parse(data []byte) (*Provider, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse fallback payloads: %w", err)
	}
	if strings.TrimSpace(doc.Version) == "" {
		return nil, errors.New("fallback payloads must declare a version")
	}
	if doc.InterviewGeneration != nil && len(doc.InterviewGeneration.Questions) == 0 {
		return nil, errors.New("interview_generation fallback needs at least one question")
	}
	if doc.AssessmentGeneration != nil && len(doc.AssessmentGeneration.Questions) == 0 {
		return nil, errors.New("assessment_generation fallback needs at least one question")
	}
	return &Provider{doc: doc}, nil
}

// Version identifies the payload document.
func (p *Provider) Version() string { return p.doc.Version }

// Has reports whether op has a fallback payload.
func (p *Provider) Has(op ai.Operation) bool {
	switch op {
	case ai.OpResumeAnalysis:
		return p.doc.ResumeAnalysis != nil
	case ai.OpContentGeneration:
		return p.doc.ContentGeneration != nil
	case ai.OpInterviewGeneration:
		return p.doc.InterviewGeneration != nil
	case ai.OpInterviewEvaluation:
		return p.doc.InterviewEvaluation != nil
	case ai.OpAssessmentGeneration:
		return p.doc.AssessmentGeneration != nil
	default:
		return false
	}
}

// Get returns the substitute payload for op, shaped like a live result.
func (p *Provider) Get(op ai.Operation, params Params) (any, error) {
	if !p.Has(op) {
		return nil, fmt.Errorf("%w for operation %q", ErrNoFallback, op)
	}

	switch op {
	case ai.OpResumeAnalysis:
		return p.resumeAnalysis(params), nil
	case ai.OpContentGeneration:
		return p.content(params), nil
	case ai.OpInterviewGeneration:
		return p.interview(params), nil
	case ai.OpInterviewEvaluation:
		return p.evaluation(params), nil
	default:
		return p.assessment(params), nil
	}
}

func (p *Provider) resumeAnalysis(params Params) *ai.ResumeAnalysis {
	src := p.doc.ResumeAnalysis
	out := &ai.ResumeAnalysis{
		TargetRole:      firstNonEmpty(params.Role, src.TargetRole),
		Summary:         src.Summary,
		Score:           src.Score,
		Strengths:       cloneStrings(src.Strengths),
		SkillGaps:       append([]ai.SkillGap{}, src.SkillGaps...),
		Recommendations: cloneStrings(src.Recommendations),
	}
	return out
}

func (p *Provider) content(params Params) *ai.GeneratedContent {
	src := p.doc.ContentGeneration
	out := &ai.GeneratedContent{
		Topic:     firstNonEmpty(params.Topic, src.Topic),
		Title:     src.Title,
		Sections:  append([]ai.ContentSection{}, src.Sections...),
		KeyPoints: cloneStrings(src.KeyPoints),
	}
	if params.Topic != "" {
		out.Title = fmt.Sprintf("%s: %s", src.Title, params.Topic)
	}
	return out
}

func (p *Provider) interview(params Params) *ai.InterviewQuestions {
	src := p.doc.InterviewGeneration
	count := clampCount(params.Count)

	out := &ai.InterviewQuestions{
		Role:      firstNonEmpty(params.Role, src.Role),
		Questions: make([]ai.InterviewQuestion, 0, count),
	}
	for i := 0; i < count; i++ {
		q := src.Questions[i%len(src.Questions)]
		q.ID = i + 1
		q.ExpectedPoints = cloneStrings(q.ExpectedPoints)
		if params.Difficulty != "" {
			q.Difficulty = params.Difficulty
		}
		out.Questions = append(out.Questions, q)
	}
	return out
}

func (p *Provider) evaluation(params Params) *ai.AnswerEvaluation {
	src := p.doc.InterviewEvaluation
	return &ai.AnswerEvaluation{
		Question:     firstNonEmpty(params.Question, src.Question),
		Score:        src.Score,
		Feedback:     src.Feedback,
		Strengths:    cloneStrings(src.Strengths),
		Improvements: cloneStrings(src.Improvements),
	}
}

func (p *Provider) assessment(params Params) *ai.Assessment {
	src := p.doc.AssessmentGeneration
	count := clampCount(params.Count)

	out := &ai.Assessment{
		Skill:     firstNonEmpty(params.Skill, src.Skill),
		Questions: make([]ai.AssessmentQuestion, 0, count),
	}
	for i := 0; i < count; i++ {
		q := src.Questions[i%len(src.Questions)]
		q.ID = i + 1
		q.Options = cloneStrings(q.Options)
		out.Questions = append(out.Questions, q)
	}
	return out
}

func clampCount(n int) int {
	switch {
	case n <= 0:
		return defaultQuestionCount
	case n > maxQuestionCount:
		return maxQuestionCount
	default:
		return n
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func cloneStrings(in []string) []string {
	return append([]string{}, in...)
}
