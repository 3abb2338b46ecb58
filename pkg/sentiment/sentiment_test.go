package sentiment

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cognivox-server/pkg/config"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
)

func init() {
	metrics.EnableMetrics(false)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestLexiconClassifier(t *testing.T) {
	classifier := NewLexiconClassifier(quietLogger())

	tests := []struct {
		name  string
		text  string
		label string
	}{
		{"positive", "I am feeling fine today", LabelPositive},
		{"strongly positive", "I feel great and really happy!", LabelPositive},
		{"negative", "I am so stressed and anxious about work.", LabelNegative},
		{"negated positive", "I am not happy at all", LabelNegative},
		{"negated negative", "I am not worried", LabelPositive},
		{"contraction negation", "I don't feel good", LabelNegative},
		{"no lexicon words", "the report is on the table", LabelPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, err := classifier.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			require.Len(t, scores, 2)
			assert.Equal(t, tt.label, scores[0].Label)
			assert.GreaterOrEqual(t, scores[0].Score, scores[1].Score)
			assert.InDelta(t, 1.0, scores[0].Score+scores[1].Score, 1e-9)
		})
	}
}

func TestLexiconClassifierIsDeterministic(t *testing.T) {
	classifier := NewLexiconClassifier(quietLogger())
	first, err := classifier.Classify(context.Background(), "I feel very tired and overwhelmed")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := classifier.Classify(context.Background(), "I feel very tired and overwhelmed")
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestClassifiersRejectEmptyText(t *testing.T) {
	classifiers := []Classifier{
		NewLexiconClassifier(quietLogger()),
		NewHTTPClassifier(quietLogger(), "http://127.0.0.1:1", time.Second),
	}
	for _, c := range classifiers {
		t.Run(c.Name(), func(t *testing.T) {
			_, err := c.Classify(context.Background(), "   ")
			assert.ErrorIs(t, err, ErrEmptyText)
			assert.ErrorIs(t, err, cerrors.ErrClassificationFailed)
		})
	}
}

func TestHTTPClassifierDetectResponse(t *testing.T) {
	var got detectRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/detect", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"emotions":[{"label":"sadness","score":0.6},{"label":"fear","score":0.2},{"label":"joy","score":0.2}],"dominant_emotion":"sadness"}`))
	}))
	defer server.Close()

	classifier := NewHTTPClassifier(quietLogger(), server.URL+"/", time.Second)
	scores, err := classifier.Classify(context.Background(), "I miss home")

	require.NoError(t, err)
	assert.Equal(t, "I miss home", got.Text)
	assert.Equal(t, LabelNegative, scores[0].Label)
	assert.InDelta(t, 0.8, scores[0].Score, 1e-9)
}

func TestHTTPClassifierListResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[[{"label":"POSITIVE","score":0.93},{"label":"NEGATIVE","score":0.07}]]`))
	}))
	defer server.Close()

	scores, err := NewHTTPClassifier(quietLogger(), server.URL, time.Second).Classify(context.Background(), "great")

	require.NoError(t, err)
	assert.Equal(t, LabelPositive, scores[0].Label)
	assert.InDelta(t, 0.93, scores[0].Score, 1e-9)
}

func TestHTTPClassifierErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewHTTPClassifier(quietLogger(), server.URL, time.Second).Classify(context.Background(), "text")
	assert.ErrorIs(t, err, cerrors.ErrClassificationFailed)
	assert.Contains(t, err.Error(), "503")

	unknown := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"label":"curiosity","score":1}]`))
	}))
	defer unknown.Close()

	_, err = NewHTTPClassifier(quietLogger(), unknown.URL, time.Second).Classify(context.Background(), "text")
	assert.ErrorIs(t, err, cerrors.ErrClassificationFailed)
}

func chatServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]interface{}{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestOpenAIClassifier(t *testing.T) {
	server := chatServer(t, "```json\n{\"label\":\"NEGATIVE\",\"score\":0.8}\n```")
	defer server.Close()

	classifier, err := NewOpenAIClassifier(quietLogger(), "sk-test", server.URL+"/v1/", "", option.WithMaxRetries(0))
	require.NoError(t, err)

	scores, err := classifier.Classify(context.Background(), "I can't sleep")
	require.NoError(t, err)
	assert.Equal(t, LabelNegative, scores[0].Label)
	assert.InDelta(t, 0.8, scores[0].Score, 1e-9)
}

func TestOpenAIClassifierRepairsJSON(t *testing.T) {
	server := chatServer(t, `{label: 'POSITIVE', score: 0.9`)
	defer server.Close()

	classifier, err := NewOpenAIClassifier(quietLogger(), "sk-test", server.URL+"/v1/", "gpt-4o-mini", option.WithMaxRetries(0))
	require.NoError(t, err)

	scores, err := classifier.Classify(context.Background(), "good day")
	require.NoError(t, err)
	assert.Equal(t, LabelPositive, scores[0].Label)
	assert.InDelta(t, 0.9, scores[0].Score, 1e-9)
}

func TestOpenAIClassifierRequiresKey(t *testing.T) {
	_, err := NewOpenAIClassifier(quietLogger(), "", "", "")
	assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig(quietLogger(), &config.SentimentConfig{Classifier: "lexicon"}, &config.OpenAISTTConfig{})
	require.NoError(t, err)
	assert.Equal(t, "lexicon", c.Name())

	c, err = NewFromConfig(quietLogger(), &config.SentimentConfig{Classifier: "http", HTTPURL: "http://x"}, &config.OpenAISTTConfig{})
	require.NoError(t, err)
	assert.Equal(t, "http", c.Name())

	_, err = NewFromConfig(quietLogger(), &config.SentimentConfig{Classifier: "openai"}, &config.OpenAISTTConfig{})
	assert.Error(t, err)

	_, err = NewFromConfig(quietLogger(), &config.SentimentConfig{Classifier: "bert"}, &config.OpenAISTTConfig{})
	assert.ErrorIs(t, err, cerrors.ErrInvalidInput)
}

func TestInstrumentAppliesTimeout(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	c := Instrument(NewHTTPClassifier(quietLogger(), slow.URL, 0), 50*time.Millisecond)
	_, err := c.Classify(context.Background(), "text")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
