package http

import (
	"encoding/json"
	"net/http"

	"cognivox-server/pkg/dashboard"
	"cognivox-server/pkg/errors"
	"cognivox-server/pkg/store"
)

const maxDocumentBytes = 1 << 20

func (s *Server) listCollectionHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	docs, err := s.deps.Store.GetAll(r.Context(), name)
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"collection": name,
		"items":      docs,
		"count":      len(docs),
	})
}

func (s *Server) createDocumentHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := store.ValidateCollection(name); err != nil {
		s.ErrorResponse(w, err)
		return
	}

	var record map[string]interface{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentBytes)).Decode(&record); err != nil {
		s.ErrorResponse(w, errors.NewInvalidInput("request body must be a JSON object"))
		return
	}

	doc, err := s.deps.Store.Create(r.Context(), name, record)
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	summary, err := dashboard.Load(r.Context(), s.deps.Store)
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) comparisonHandler(w http.ResponseWriter, r *http.Request) {
	cmp, err := dashboard.LoadComparison(r.Context(), s.deps.Store)
	if err != nil {
		s.ErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}
