package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"

	cerrors "cognivox-server/pkg/errors"
)

const openaiSystemPrompt = `You are a sentiment classifier. Reply with only a JSON object of the form {"label":"POSITIVE"|"NEGATIVE","score":<probability between 0 and 1>} describing the speaker's overall sentiment.`

// OpenAIClassifier asks a chat model for a POSITIVE/NEGATIVE verdict
type OpenAIClassifier struct {
	logger *logrus.Entry
	client *openai.Client
	model  string
}

// NewOpenAIClassifier creates a chat completion classifier
func NewOpenAIClassifier(logger *logrus.Logger, apiKey, baseURL, model string, extra ...option.RequestOption) (*OpenAIClassifier, error) {
	if apiKey == "" {
		return nil, cerrors.NewInvalidInput("OPENAI_API_KEY is required for the openai sentiment classifier")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	client := openai.NewClient(opts...)

	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIClassifier{
		logger: logger.WithField("component", "sentiment_openai"),
		client: &client,
		model:  model,
	}, nil
}

// Name returns the classifier name
func (oc *OpenAIClassifier) Name() string {
	return "openai"
}

// Classify sends text to the chat model and parses its JSON verdict
func (oc *OpenAIClassifier) Classify(ctx context.Context, text string) ([]Score, error) {
	if strings.TrimSpace(text) == "" {
		return nil, cerrors.NewClassificationError(oc.Name(), ErrEmptyText)
	}

	resp, err := oc.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(oc.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(openaiSystemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return nil, cerrors.NewClassificationError(oc.Name(), err)
	}
	if len(resp.Choices) == 0 {
		return nil, cerrors.NewClassificationError(oc.Name(), fmt.Errorf("model returned no choices"))
	}

	verdict, err := parseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, cerrors.NewClassificationError(oc.Name(), err)
	}
	label, ok := polarity(verdict.Label)
	if !ok {
		return nil, cerrors.NewClassificationError(oc.Name(), fmt.Errorf("unexpected label %q", verdict.Label))
	}
	positive := clamp01(verdict.Score)
	if label == LabelNegative {
		positive = 1 - positive
	}
	scores := binary(positive)

	oc.logger.WithFields(logrus.Fields{
		"model": oc.model,
		"label": scores[0].Label,
	}).Debug("Chat classification completed")
	return scores, nil
}

// parseVerdict extracts the JSON object from a model reply, repairing it when needed
func parseVerdict(content string) (Score, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}

	var verdict Score
	err := json.Unmarshal([]byte(content), &verdict)
	if _, ok := err.(*json.SyntaxError); ok {
		fixed, rerr := jsonrepair.JSONRepair(content)
		if rerr != nil {
			return Score{}, fmt.Errorf("unparseable verdict %q: %w", content, rerr)
		}
		err = json.Unmarshal([]byte(fixed), &verdict)
	}
	if err != nil {
		return Score{}, fmt.Errorf("decode verdict: %w", err)
	}
	if verdict.Label == "" {
		return Score{}, fmt.Errorf("verdict has no label")
	}
	return verdict, nil
}
