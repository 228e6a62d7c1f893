// Package httpapi exposes the record store over HTTP so remote clients
// can create, read, overwrite, and watch split records.
//
// The surface mirrors the recordstore.Store interface one-to-one: JSON
// bodies for reads and writes, a server-sent-event stream for Watch.
// There is no authentication; any holder of a PIN may write, which is the
// product's trust model.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/snaptab/snaptab/internal/recordstore"
	"github.com/snaptab/snaptab/internal/session"
)

// Server handles record requests against a backing store.
type Server struct {
	store      recordstore.Store
	corsOrigin string
}

// NewServer creates an HTTP server over the given store.
func NewServer(store recordstore.Store, corsOrigin string) *Server {
	return &Server{store: store, corsOrigin: corsOrigin}
}

// Handler returns the routed handler with logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /v1/records/{pin}", s.handleCreate)
	mux.HandleFunc("GET /v1/records/{pin}", s.handleGet)
	mux.HandleFunc("PUT /v1/records/{pin}", s.handleOverwrite)
	mux.HandleFunc("GET /v1/records/{pin}/watch", s.handleWatch)
	return loggingMiddleware(corsMiddleware(mux, s.corsOrigin))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func pinParam(r *http.Request) (string, error) {
	pin := r.PathValue("pin")
	if !session.ValidPIN(pin) {
		return "", fmt.Errorf("pin %q must be %d digits", pin, 4)
	}
	return pin, nil
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	pin, err := pinParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PIN", err.Error())
		return
	}

	var rec recordstore.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	if err := s.store.Create(r.Context(), pin, rec); err != nil {
		if errors.Is(err, recordstore.ErrConflict) {
			writeError(w, http.StatusConflict, "PIN_TAKEN", "a split already exists for this PIN")
			return
		}
		writeError(w, http.StatusInternalServerError, "CREATE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	pin, err := pinParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PIN", err.Error())
		return
	}

	rec, err := s.store.Get(r.Context(), pin)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "no split for this PIN")
			return
		}
		writeError(w, http.StatusInternalServerError, "GET_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleOverwrite(w http.ResponseWriter, r *http.Request) {
	pin, err := pinParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PIN", err.Error())
		return
	}

	var rec recordstore.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}

	if err := s.store.Overwrite(r.Context(), pin, rec); err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "no split for this PIN")
			return
		}
		writeError(w, http.StatusInternalServerError, "OVERWRITE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleWatch streams records as server-sent events. The current record,
// if any, is sent first so a late subscriber starts from complete state.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	pin, err := pinParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_PIN", err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "response writer cannot stream")
		return
	}

	sub, err := s.store.Watch(r.Context(), pin)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "WATCH_FAILED", err.Error())
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	if rec, err := s.store.Get(r.Context(), pin); err == nil {
		writeEvent(w, flusher, *rec)
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case rec, open := <-sub.Updates():
			if !open {
				return
			}
			writeEvent(w, flusher, rec)
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, rec recordstore.Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": code, "message": message})
}
