package http

import (
	goerrors "errors"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/backend"
	"cognivox-server/pkg/correlation"
	"cognivox-server/pkg/errors"
)

const multipartMemory = 8 << 20

// analyzeSpeechHandler serves POST /analyze-speech with the same wire format
// the remote backend client expects, so one instance can back another.
func (s *Server) analyzeSpeechHandler(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if goerrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "Audio file too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No audio file provided"})
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No audio file provided"})
		return
	}
	defer file.Close()

	blob, err := io.ReadAll(file)
	if err != nil || len(blob) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No audio file provided"})
		return
	}

	userID := r.FormValue("user_id")
	logger := correlation.Entry(r.Context(), s.logger).WithFields(logrus.Fields{
		"user_id":  userID,
		"filename": header.Filename,
		"bytes":    len(blob),
		"analyzer": s.deps.Analyzer.Name(),
	})

	result, err := s.deps.Analyzer.Analyze(r.Context(), blob)
	if err != nil {
		logger.WithError(err).Error("Speech analysis failed")
		if !goerrors.Is(err, errors.ErrAnalysisFailed) {
			err = errors.NewAnalysisError(err)
		}
		errors.WriteError(w, err)
		return
	}

	logger.WithFields(logrus.Fields{
		"sentiment":    result.Sentiment,
		"stress_score": result.StressScore,
	}).Info("Speech analyzed")

	s.broadcast(EventAnalysisCompleted, map[string]interface{}{
		"user_id":  userID,
		"analysis": result,
	})
	writeJSON(w, http.StatusOK, backend.AnalyzeResponse{Status: "success", Analysis: result})
}
