package ai

// The result types below are produced both by live model calls and by the
// fallback provider, so callers never branch on where a result came from.

type SkillGap struct {
	Skill      string `json:"skill" yaml:"skill"`
	Importance string `json:"importance" yaml:"importance"`
	Suggestion string `json:"suggestion" yaml:"suggestion"`
}

type ResumeAnalysis struct {
	TargetRole      string     `json:"targetRole" yaml:"target_role"`
	Summary         string     `json:"summary" yaml:"summary"`
	Score           float64    `json:"score" yaml:"score"`
	Strengths       []string   `json:"strengths" yaml:"strengths"`
	SkillGaps       []SkillGap `json:"skillGaps" yaml:"skill_gaps"`
	Recommendations []string   `json:"recommendations" yaml:"recommendations"`
}

type ContentSection struct {
	Heading string `json:"heading" yaml:"heading"`
	Body    string `json:"body" yaml:"body"`
}

type GeneratedContent struct {
	Topic     string           `json:"topic" yaml:"topic"`
	Title     string           `json:"title" yaml:"title"`
	Sections  []ContentSection `json:"sections" yaml:"sections"`
	KeyPoints []string         `json:"keyPoints" yaml:"key_points"`
}

type InterviewQuestion struct {
	ID             int      `json:"id" yaml:"id"`
	Question       string   `json:"question" yaml:"question"`
	Category       string   `json:"category" yaml:"category"`
	Difficulty     string   `json:"difficulty" yaml:"difficulty"`
	ExpectedPoints []string `json:"expectedPoints" yaml:"expected_points"`
}

type InterviewQuestions struct {
	Role      string              `json:"role" yaml:"role"`
	Questions []InterviewQuestion `json:"questions" yaml:"questions"`
}

type AnswerEvaluation struct {
	Question     string   `json:"question" yaml:"question"`
	Score        float64  `json:"score" yaml:"score"`
	Feedback     string   `json:"feedback" yaml:"feedback"`
	Strengths    []string `json:"strengths" yaml:"strengths"`
	Improvements []string `json:"improvements" yaml:"improvements"`
}

type AssessmentQuestion struct {
	ID           int      `json:"id" yaml:"id"`
	Question     string   `json:"question" yaml:"question"`
	Options      []string `json:"options" yaml:"options"`
	CorrectIndex int      `json:"correctIndex" yaml:"correct_index"`
	Explanation  string   `json:"explanation" yaml:"explanation"`
}

type Assessment struct {
	Skill     string               `json:"skill" yaml:"skill"`
	Questions []AssessmentQuestion `json:"questions" yaml:"questions"`
}
