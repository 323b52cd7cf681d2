package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	gradingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "grading_duration_seconds",
		Help:      "Duration of AI grading requests",
	}, []string{"model"})

	gradingFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "grading_failures_total",
		Help:      "Number of AI grading failures",
	}, []string{"model"})
)

// maxSubmissionChars caps how much submission text is sent to the model.
const maxSubmissionChars = 24000

// OpenAIConfig defines configuration options for the OpenAI grader.
type OpenAIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIGrader implements Grader against the OpenAI chat completion API.
type OpenAIGrader struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGrader builds a new grader using the provided configuration.
func NewOpenAIGrader(cfg OpenAIConfig) (*OpenAIGrader, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 400
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIGrader{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-lms-api/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_grader").Logger(),
	}, nil
}

// Grade sends the submission to OpenAI and parses the JSON verdict.
func (g *OpenAIGrader) Grade(parent context.Context, input GradingInput) (GradingResult, error) {
	ctx, span := g.tracer.Start(parent, "openai.grade", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
		attribute.Int64("grading.student_id", int64(input.StudentID)),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		MaxTokens:   g.cfg.MaxTokens,
		Temperature: g.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: graderSystemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildUserPrompt(input),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	gradingDuration.WithLabelValues(g.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return GradingResult{}, g.fail(span, fmt.Errorf("openai grade: %w", err))
	}

	if len(resp.Choices) == 0 {
		return GradingResult{}, g.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	result, err := ParseGradingResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		return GradingResult{}, g.fail(span, err)
	}

	result.Raw = map[string]interface{}{
		"model": resp.Model,
		"usage": resp.Usage,
	}
	span.SetAttributes(attribute.Int("grading.score", result.Score))
	g.logger.Debug().Uint("student_id", input.StudentID).Int("score", result.Score).Msg("submission graded")

	return result, nil
}

func (g *OpenAIGrader) fail(span trace.Span, err error) error {
	gradingFailures.WithLabelValues(g.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func graderSystemPrompt() string {
	return "You are an assignment grader for an online course. Respond with a JSON object containing score " +
		"(integer 0-100) and feedback (one or two sentences addressed to the student). Judge correctness, " +
		"completeness and clarity against the assignment brief."
}

func buildUserPrompt(input GradingInput) string {
	builder := strings.Builder{}
	builder.WriteString("# Assignment\n")
	builder.WriteString(input.AssignmentTitle)
	if input.AssignmentDescription != "" {
		builder.WriteString("\n\n## Brief\n")
		builder.WriteString(input.AssignmentDescription)
	}
	builder.WriteString(fmt.Sprintf("\n\n## Student\n%d", input.StudentID))
	if input.FileName != "" {
		builder.WriteString("\n\n## File\n")
		builder.WriteString(input.FileName)
	}
	builder.WriteString("\n\n## Submission\n")
	text := input.SubmissionText
	if len(text) > maxSubmissionChars {
		text = text[:maxSubmissionChars]
	}
	if strings.TrimSpace(text) == "" {
		text = "[no readable text content]"
	}
	builder.WriteString(text)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}
