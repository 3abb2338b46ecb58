package sentiment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/version"
)

type detectRequest struct {
	Text string `json:"text"`
}

type detectResponse struct {
	Emotions        []Score `json:"emotions"`
	Scores          []Score `json:"scores"`
	DominantEmotion string  `json:"dominant_emotion"`
}

// HTTPClassifier calls a remote /detect service that returns label scores
type HTTPClassifier struct {
	logger  *logrus.Entry
	baseURL string
	client  *http.Client
}

// NewHTTPClassifier creates a classifier for the service at baseURL
func NewHTTPClassifier(logger *logrus.Logger, baseURL string, timeout time.Duration) *HTTPClassifier {
	return &HTTPClassifier{
		logger:  logger.WithField("component", "sentiment_http"),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the classifier name
func (hc *HTTPClassifier) Name() string {
	return "http"
}

// Classify posts the text and folds the returned labels into POSITIVE/NEGATIVE
func (hc *HTTPClassifier) Classify(ctx context.Context, text string) ([]Score, error) {
	if strings.TrimSpace(text) == "" {
		return nil, cerrors.NewClassificationError(hc.Name(), ErrEmptyText)
	}

	body, _ := json.Marshal(detectRequest{Text: text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hc.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return nil, cerrors.NewClassificationError(hc.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, cerrors.NewClassificationError(hc.Name(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, cerrors.NewClassificationError(hc.Name(), err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, cerrors.NewClassificationError(hc.Name(), fmt.Errorf("detect %s: %s", resp.Status, strings.TrimSpace(string(data))))
	}

	raw, err := decodeScores(data)
	if err != nil {
		return nil, cerrors.NewClassificationError(hc.Name(), err)
	}
	scores, err := normalize(raw)
	if err != nil {
		return nil, cerrors.NewClassificationError(hc.Name(), err)
	}

	hc.logger.WithField("label", scores[0].Label).Debug("Remote classification completed")
	return scores, nil
}

// decodeScores accepts a bare score list, a nested list or a /detect object
func decodeScores(data []byte) ([]Score, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	if trimmed[0] == '[' {
		var flat []Score
		if err := json.Unmarshal(trimmed, &flat); err == nil {
			return flat, nil
		}
		var nested [][]Score
		if err := json.Unmarshal(trimmed, &nested); err != nil {
			return nil, fmt.Errorf("decode scores: %w", err)
		}
		var out []Score
		for _, inner := range nested {
			out = append(out, inner...)
		}
		return out, nil
	}

	var obj detectResponse
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	if len(obj.Emotions) > 0 {
		return obj.Emotions, nil
	}
	if len(obj.Scores) > 0 {
		return obj.Scores, nil
	}
	if obj.DominantEmotion != "" {
		return []Score{{Label: obj.DominantEmotion, Score: 1}}, nil
	}
	return nil, fmt.Errorf("response carried no scores")
}
