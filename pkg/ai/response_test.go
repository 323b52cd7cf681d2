package ai

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseGradingResponse(t *testing.T) {
	result, err := ParseGradingResponse(`{"score": 86.6, "feedback": "  Solid structure.  "}`)
	require.NoError(t, err)
	require.Equal(t, 87, result.Score)
	require.Equal(t, "Solid structure.", result.Feedback)
}

func TestParseGradingResponseClampsOutOfRangeScores(t *testing.T) {
	high, err := ParseGradingResponse(`{"score": 140, "feedback": "ok"}`)
	require.NoError(t, err)
	require.Equal(t, 100, high.Score)

	low, err := ParseGradingResponse(`{"score": -3, "feedback": "ok"}`)
	require.NoError(t, err)
	require.Equal(t, 0, low.Score)
}

func TestParseGradingResponseRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"missing feedback": `{"score": 50}`,
		"string score":     `{"score": "fifty", "feedback": "ok"}`,
		"not an object":    `[1, 2, 3]`,
		"invalid json":     `score: 50`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseGradingResponse(body)
			require.Error(t, err)
		})
	}
}

func TestBuildUserPromptTruncatesAndFillsEmptySubmission(t *testing.T) {
	prompt := buildUserPrompt(GradingInput{AssignmentTitle: "Loops", StudentID: 7})
	require.Contains(t, prompt, "[no readable text content]")
	require.Contains(t, prompt, "Loops")

	long := make([]byte, maxSubmissionChars+100)
	for i := range long {
		long[i] = 'a'
	}
	prompt = buildUserPrompt(GradingInput{AssignmentTitle: "Loops", SubmissionText: string(long)})
	require.Less(t, len(prompt), maxSubmissionChars+200)
}

func TestNewOpenAIGraderRequiresKey(t *testing.T) {
	_, err := NewOpenAIGrader(OpenAIConfig{})
	require.Error(t, err)

	grader, err := NewOpenAIGrader(OpenAIConfig{APIKey: "test"})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", grader.cfg.Model)
}
