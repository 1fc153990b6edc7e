package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hubdeck/hubdeck/internal/entity"
	"github.com/hubdeck/hubdeck/internal/errors"
	"github.com/hubdeck/hubdeck/pkg/version"
)

// handleVersion serves build information.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	versionInfo := version.GetInfo()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	if err := json.NewEncoder(w).Encode(versionInfo); err != nil {
		s.logger.WithError(err).Error("Failed to encode version response")
	}
}

// handleEntities serves the store's current entity table.
func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	entities := s.store.Snapshot()

	response := struct {
		Count    int            `json:"count"`
		Entities []entity.State `json:"entities"`
	}{
		Count:    len(entities),
		Entities: entities,
	}

	if err := s.writeJSON(w, http.StatusOK, response); err != nil {
		s.logger.WithError(err).Error("Failed to encode entities response")
	}
}

// handleEntity serves one entity's last-known state.
func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	st, ok := s.store.Lookup(id)
	if !ok {
		err := errors.NewMalformedError("unknown entity").
			WithEntity(id).
			WithStatus(http.StatusNotFound)
		s.writeError(w, r, err)
		return
	}

	if err := s.writeJSON(w, http.StatusOK, st); err != nil {
		s.logger.WithError(err).Error("Failed to encode entity response")
	}
}

// handleWatch serves the active watch set, pending entries included.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	ids := s.store.WatchList()

	response := struct {
		Count    int      `json:"count"`
		Entities []string `json:"entities"`
	}{
		Count:    len(ids),
		Entities: ids,
	}

	if err := s.writeJSON(w, http.StatusOK, response); err != nil {
		s.logger.WithError(err).Error("Failed to encode watch response")
	}
}

// writeJSON is a helper to write JSON responses.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// writeError is a helper to write error responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.errorHandler.HandleError(w, r, err)
}
