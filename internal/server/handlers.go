package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/agbru/parglm/internal/config"
	"github.com/agbru/parglm/internal/dataset"
	apperrors "github.com/agbru/parglm/internal/errors"
	"github.com/agbru/parglm/internal/glm"
	"github.com/agbru/parglm/internal/logging"
	"github.com/agbru/parglm/internal/service"
	"github.com/agbru/parglm/pkg/models"
)

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, models.HealthResponse{Status: "healthy", Timestamp: time.Now().Unix()})
}

// handleFamilies lists the family names accepted by POST /fit.
func (s *Server) handleFamilies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	s.writeJSONResponse(w, http.StatusOK, models.FamiliesResponse{Families: s.service.Families()})
}

// handleFit decodes a models.FitRequest, fits it and answers with a
// models.FitResponse.
//
// Input problems answer 400, oversized datasets 413, numeric failures 422
// and a fit outliving the request timeout 504. The fit itself is never
// interrupted; its result is discarded, but it keeps its fit slot until it
// returns. A request that finds no free slot before its timeout answers 503.
func (s *Server) handleFit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	req, ds, err := s.decodeFitRequest(w, r)
	if err != nil {
		var parseErr RequestParseError
		if errors.As(err, &parseErr) {
			s.writeErrorResponse(w, parseErr.StatusCode, parseErr.Message)
		} else {
			s.writeErrorResponse(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeouts.RequestTimeout)
	defer cancel()

	if err := s.fitSlots.Acquire(ctx, 1); err != nil {
		s.logger.Error("no fit slot available", err, logging.String("family", req.Family))
		w.Header().Set("Retry-After", "1")
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "Too many fits in progress, retry later.")
		return
	}

	type outcome struct {
		resp models.FitResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		defer s.fitSlots.Release(1)
		resp, err := s.service.Fit(ctx, req.Family, ds, fitOverrides(req.Options))
		done <- outcome{resp, err}
	}()

	select {
	case <-ctx.Done():
		s.logger.Error("fit abandoned", ctx.Err(), logging.String("family", req.Family))
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "The fit did not finish within the request timeout.")
	case out := <-done:
		if out.err != nil {
			s.writeErrorResponse(w, statusForError(out.err), out.err.Error())
			return
		}
		s.writeJSONResponse(w, http.StatusOK, out.resp)
	}
}

// decodeFitRequest reads and validates the request body.
func (s *Server) decodeFitRequest(w http.ResponseWriter, r *http.Request) (models.FitRequest, *dataset.Dataset, error) {
	var req models.FitRequest
	limit := s.securityConfig.MaxBodyBytes
	if limit <= 0 {
		limit = DefaultSecurityConfig().MaxBodyBytes
	}
	body := http.MaxBytesReader(w, r.Body, limit)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return req, nil, RequestParseError{
				Message:    fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
				StatusCode: http.StatusRequestEntityTooLarge,
			}
		}
		return req, nil, RequestParseError{Message: "Invalid request body: " + err.Error(), StatusCode: http.StatusBadRequest}
	}
	if req.Family == "" {
		req.Family = config.DefaultFamily
	}
	if len(req.Data) == 0 {
		return req, nil, RequestParseError{Message: "Missing 'data' member", StatusCode: http.StatusBadRequest}
	}
	o := req.Options
	if o.Tolerance < 0 || o.MaxIterations < 0 || o.BlockSize < 0 {
		return req, nil, RequestParseError{Message: "Options must not be negative", StatusCode: http.StatusBadRequest}
	}

	intercept := true
	if req.Intercept != nil {
		intercept = *req.Intercept
	}
	ds, err := dataset.ParseJSON(req.Data, "request", dataset.Options{Intercept: intercept})
	if err != nil {
		return req, nil, RequestParseError{Message: err.Error(), StatusCode: http.StatusBadRequest}
	}
	return req, ds, nil
}

// fitOverrides maps request options to glm.Options; zero fields keep the
// server defaults.
func fitOverrides(o models.FitOptions) glm.Options {
	return glm.Options{
		Tolerance:     o.Tolerance,
		MaxIterations: o.MaxIterations,
		BlockSize:     o.BlockSize,
		Trace:         o.Trace,
	}
}

// statusForError maps a service error to an HTTP status.
func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrTooManyObservations), errors.Is(err, service.ErrTooManyPredictors):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, glm.ErrUnknownFamily):
		return http.StatusBadRequest
	}
	switch apperrors.ExitCodeFor(err) {
	case apperrors.ExitErrorInput, apperrors.ExitErrorConfig:
		return http.StatusBadRequest
	case apperrors.ExitErrorNumeric:
		return http.StatusUnprocessableEntity
	case apperrors.ExitErrorTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeJSONResponse writes data as JSON with the given status.
func (s *Server) writeJSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("Error encoding JSON response: %v", err)
	}
}

// writeErrorResponse writes a models.ErrorResponse.
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	s.writeJSONResponse(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// RequestParseError is a request validation failure with its HTTP status.
type RequestParseError struct {
	Message    string
	StatusCode int
}

func (e RequestParseError) Error() string {
	return e.Message
}
