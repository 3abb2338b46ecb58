package http

import (
	goerrors "errors"
	"net/http"

	"cognivox-server/pkg/errors"
	"cognivox-server/pkg/submission"
)

func (s *Server) listRecordingsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"sessions":       s.deps.Recorder.Sessions(),
		"active_session": s.deps.Recorder.ActiveSession(),
	})
}

func (s *Server) startRecordingHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Recorder.Start(r.Context(), id); err != nil {
		s.ErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "capturing", "id": id})
}

func (s *Server) stopRecordingHandler(w http.ResponseWriter, r *http.Request) {
	info, err := s.deps.Recorder.Stop(r.PathValue("id"))
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) deleteRecordingHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.deps.Recorder.Delete(id); err != nil {
		s.ErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

func (s *Server) submitRecordingsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, release := s.deps.Recorder.Claim()
	defer release()

	report, err := s.deps.Submitter.Submit(r.Context(), sessions)
	if goerrors.Is(err, submission.ErrNothingToSubmit) {
		s.ErrorResponse(w, errors.NewInvalidInput("Please record at least one voice sample before analyzing."))
		return
	}
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}

	s.broadcast(EventSubmissionCompleted, report)
	writeJSON(w, http.StatusOK, report)
}
