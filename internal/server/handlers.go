package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/jonathan/claim-processor/internal/pipeline"
	"github.com/jonathan/claim-processor/internal/types"
)

// handleProcess runs a claim synchronously and returns the final run state.
// Failed runs still return 200; callers inspect overall_status.
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProcessRequest(w, r)
	if !ok {
		return
	}

	// A client disconnect must not abort the run; the request context only
	// scopes the response.
	run, err := s.coordinator.Run(context.WithoutCancel(r.Context()), req.ClaimID, req.Description)
	if err != nil {
		if errors.Is(err, pipeline.ErrClaimInFlight) {
			s.errorResponse(w, http.StatusConflict, err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, run)
}

// handleProcessStream runs a claim and streams progress events over SSE. The
// stream ends with the run's terminal event.
func (s *Server) handleProcessStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeProcessRequest(w, r)
	if !ok {
		return
	}

	events, err := s.coordinator.RunStream(context.WithoutCancel(r.Context()), req.ClaimID, req.Description)
	if err != nil {
		if errors.Is(err, pipeline.ErrClaimInFlight) {
			s.errorResponse(w, http.StatusConflict, err.Error())
			return
		}
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	// The run keeps executing if the client goes away; events drain into
	// the buffered channel and the loop exits when the run finishes.
	for ev := range events {
		if err := sse.WriteEvent(string(ev.Type), ev); err != nil {
			log.Printf("SSE write failed for claim %s: %v", req.ClaimID, err)
		}
	}
}

// handleGetClaim rebuilds a claim projection from the persisted stage records.
func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	claimID := r.PathValue("id")

	records, err := s.store.GetAll(r.Context(), claimID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(records) == 0 {
		s.errorResponse(w, http.StatusNotFound, "claim not found")
		return
	}

	// Merge completed stage facts in stage order, first writer wins.
	merged := make(map[string]any)
	byStage := make(map[types.StageName]string, len(records))
	for _, rec := range records {
		byStage[rec.Stage] = rec.Status
	}
	for _, name := range types.StageOrder {
		for _, rec := range records {
			if rec.Stage != name || rec.Status != types.StageStatusCompleted {
				continue
			}
			for key, value := range rec.Extracted {
				if _, exists := merged[key]; !exists {
					merged[key] = value
				}
			}
		}
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"claim_id": claimID,
		"stages":   byStage,
		"facts":    merged,
	})
}

// handleGetClaimStages returns the persisted stage records in order.
func (s *Server) handleGetClaimStages(w http.ResponseWriter, r *http.Request) {
	claimID := r.PathValue("id")

	records, err := s.store.GetAll(r.Context(), claimID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(records) == 0 {
		s.errorResponse(w, http.StatusNotFound, "claim not found")
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"claim_id": claimID,
		"stages":   records,
	})
}

// decodeProcessRequest parses and validates the process request body.
func (s *Server) decodeProcessRequest(w http.ResponseWriter, r *http.Request) (*types.ProcessRequest, bool) {
	var req types.ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return &req, true
}
