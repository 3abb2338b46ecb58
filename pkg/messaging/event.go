package messaging

import (
	"time"

	"github.com/google/uuid"

	"cognivox-server/pkg/analysis"
	"cognivox-server/pkg/submission"
)

// EventAnalysisCompleted is the type of events published after a recording is stored
const EventAnalysisCompleted = "analysis.completed"

// AnalysisEvent is the JSON body published for every stored recording
type AnalysisEvent struct {
	Type           string           `json:"type"`
	EventID        string           `json:"event_id"`
	SessionID      string           `json:"session_id"`
	RecordingID    string           `json:"recording_id"`
	RecordingLabel string           `json:"recording_label"`
	CognitiveScore int              `json:"cognitive_score"`
	StressLevel    int              `json:"stress_level"`
	FatigueIndex   int              `json:"fatigue_index"`
	Analysis       *analysis.Result `json:"analysis,omitempty"`
	MarkerID       string           `json:"marker_id,omitempty"`
	Timestamp      time.Time        `json:"timestamp"`
}

// NewAnalysisEvent describes a submission outcome
func NewAnalysisEvent(o submission.Outcome) AnalysisEvent {
	ev := AnalysisEvent{
		Type:           EventAnalysisCompleted,
		EventID:        uuid.NewString(),
		SessionID:      o.SessionID,
		RecordingID:    o.Recording.ID,
		RecordingLabel: o.Recording.RecordingLabel,
		CognitiveScore: o.Recording.CognitiveScore,
		StressLevel:    o.Recording.StressLevel,
		FatigueIndex:   o.Recording.FatigueIndex,
		Analysis:       o.Analysis,
		Timestamp:      time.Now().UTC(),
	}
	if o.Marker != nil {
		ev.MarkerID = o.Marker.ID
	}
	return ev
}
