package fallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/interview-coach/internal/ai"
)

func newProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New()
	require.NoError(t, err)
	return p
}

func TestEmbeddedPayloadsCoverEveryOperation(t *testing.T) {
	p := newProvider(t)

	assert.NotEmpty(t, p.Version())
	for _, op := range ai.Operations {
		assert.True(t, p.Has(op), "missing fallback for %s", op)

		payload, err := p.Get(op, Params{})
		require.NoError(t, err, op)
		require.NotNil(t, payload, op)
	}
}

func TestGetReturnsLiveShapes(t *testing.T) {
	p := newProvider(t)

	tests := []struct {
		op   ai.Operation
		want any
	}{
		{ai.OpResumeAnalysis, &ai.ResumeAnalysis{}},
		{ai.OpContentGeneration, &ai.GeneratedContent{}},
		{ai.OpInterviewGeneration, &ai.InterviewQuestions{}},
		{ai.OpInterviewEvaluation, &ai.AnswerEvaluation{}},
		{ai.OpAssessmentGeneration, &ai.Assessment{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			got, err := p.Get(tt.op, Params{})
			require.NoError(t, err)
			assert.IsType(t, tt.want, got)
		})
	}
}

func TestGetIsDeterministic(t *testing.T) {
	p := newProvider(t)
	params := Params{Role: "Backend Engineer", Count: 7, Difficulty: "hard", Skill: "Go", Topic: "channels", Question: "Why Go?"}

	for _, op := range ai.Operations {
		first, err := p.Get(op, params)
		require.NoError(t, err)
		second, err := p.Get(op, params)
		require.NoError(t, err)
		assert.Equal(t, first, second, string(op))
	}
}

func TestInterviewQuestionsFollowParams(t *testing.T) {
	p := newProvider(t)

	payload, err := p.Get(ai.OpInterviewGeneration, Params{Role: "SRE", Count: 12, Difficulty: "hard"})
	require.NoError(t, err)

	questions := payload.(*ai.InterviewQuestions)
	assert.Equal(t, "SRE", questions.Role)
	require.Len(t, questions.Questions, 12)
	for i, q := range questions.Questions {
		assert.Equal(t, i+1, q.ID)
		assert.Equal(t, "hard", q.Difficulty)
		assert.NotEmpty(t, q.Question)
	}

	payload, err = p.Get(ai.OpInterviewGeneration, Params{})
	require.NoError(t, err)
	assert.Len(t, payload.(*ai.InterviewQuestions).Questions, defaultQuestionCount)

	payload, err = p.Get(ai.OpInterviewGeneration, Params{Count: 500})
	require.NoError(t, err)
	assert.Len(t, payload.(*ai.InterviewQuestions).Questions, maxQuestionCount)
}

func TestAssessmentEchoesSkill(t *testing.T) {
	p := newProvider(t)

	payload, err := p.Get(ai.OpAssessmentGeneration, Params{Skill: "  Kubernetes ", Count: 3})
	require.NoError(t, err)

	assessment := payload.(*ai.Assessment)
	assert.Equal(t, "Kubernetes", assessment.Skill)
	require.Len(t, assessment.Questions, 3)
	for _, q := range assessment.Questions {
		assert.Less(t, q.CorrectIndex, len(q.Options))
	}
}

func TestPayloadsAreNotShared(t *testing.T) {
	p := newProvider(t)

	first, err := p.Get(ai.OpResumeAnalysis, Params{})
	require.NoError(t, err)
	first.(*ai.ResumeAnalysis).Strengths[0] = "mutated"

	second, err := p.Get(ai.OpResumeAnalysis, Params{})
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", second.(*ai.ResumeAnalysis).Strengths[0])
}

func TestUnknownOperation(t *testing.T) {
	p := newProvider(t)

	payload, err := p.Get(ai.Operation("poetry"), Params{})
	assert.Nil(t, payload)
	assert.ErrorIs(t, err, ErrNoFallback)
	assert.False(t, p.Has("poetry"))
}

func TestParseValidatesDocument(t *testing.T) {
	_, err := Parse([]byte("resume_analysis: {summary: x}"))
	assert.Error(t, err, "version is required")

	_, err = Parse([]byte("version: \"1\"\ninterview_generation: {questions: []}"))
	assert.Error(t, err)

	p, err := Parse([]byte("version: \"1\"\nresume_analysis: {summary: x}"))
	require.NoError(t, err)
	assert.True(t, p.Has(ai.OpResumeAnalysis))
	assert.False(t, p.Has(ai.OpContentGeneration))

	_, err = p.Get(ai.OpContentGeneration, Params{})
	assert.ErrorIs(t, err, ErrNoFallback)

	_, err = Parse([]byte("version: [unclosed"))
	assert.Error(t, err)
}
