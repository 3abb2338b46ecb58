package store

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Collection names
const (
	CollectionVoiceRecordings = "voicerecordings"
	CollectionHealthMetrics   = "healthmetrics"
	CollectionAnalysisMarkers = "analysismarkers"
)

// StoredRecording is one submitted recording with its scores
type StoredRecording struct {
	ID             string `json:"_id,omitempty" yaml:"_id,omitempty"`
	CreatedDate    string `json:"_createdDate,omitempty" yaml:"_createdDate,omitempty"`
	RecordingLabel string `json:"recordingLabel" yaml:"recordingLabel"`
	AudioFile      string `json:"audioFile" yaml:"audioFile"`
	CognitiveScore int    `json:"cognitiveScore" yaml:"cognitiveScore"`
	StressLevel    int    `json:"stressLevel" yaml:"stressLevel"`
	FatigueIndex   int    `json:"fatigueIndex" yaml:"fatigueIndex"`
	SubmissionDate string `json:"submissionDate" yaml:"submissionDate"`
}

// UnmarshalJSON accepts loosely typed scores. The collection is schema-free,
// so fractions are rounded half-up and anything non-numeric reads as 0.
func (r *StoredRecording) UnmarshalJSON(data []byte) error {
	type plain StoredRecording
	aux := struct {
		*plain
		CognitiveScore interface{} `json:"cognitiveScore"`
		StressLevel    interface{} `json:"stressLevel"`
		FatigueIndex   interface{} `json:"fatigueIndex"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.CognitiveScore = looseInt(aux.CognitiveScore)
	r.StressLevel = looseInt(aux.StressLevel)
	r.FatigueIndex = looseInt(aux.FatigueIndex)
	return nil
}

func looseInt(v interface{}) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Floor(f + 0.5))
}

// HealthMetric describes a metric shown on the landing pages
type HealthMetric struct {
	ID          string `json:"_id,omitempty" yaml:"_id,omitempty"`
	CreatedDate string `json:"_createdDate,omitempty" yaml:"_createdDate,omitempty"`
	MetricName  string `json:"metricName" yaml:"metricName"`
	Description string `json:"description" yaml:"description"`
	MetricIcon  string `json:"metricIcon" yaml:"metricIcon"`
	Tagline     string `json:"tagline" yaml:"tagline"`
	Benefit     string `json:"benefit" yaml:"benefit"`
}

// AnalysisMarker flags something notable found in a recording
type AnalysisMarker struct {
	ID                  string `json:"_id,omitempty" yaml:"_id,omitempty"`
	CreatedDate         string `json:"_createdDate,omitempty" yaml:"_createdDate,omitempty"`
	Timestamp           string `json:"timestamp" yaml:"timestamp"`
	DetectedIssue       string `json:"detectedIssue" yaml:"detectedIssue"`
	Explanation         string `json:"explanation" yaml:"explanation"`
	RecordingIdentifier string `json:"recordingIdentifier" yaml:"recordingIdentifier"`
	IssueCategory       string `json:"issueCategory" yaml:"issueCategory"`
}
