package http

import (
	"errors"
	"net/http"
	"strings"

	"dreamsaver/internal/core"
	"dreamsaver/internal/log"
	"dreamsaver/internal/services"
)

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	now := s.goals.Now()
	goals := s.goals.List()
	views := make([]goalView, 0, len(goals))
	for _, g := range goals {
		views = append(views, newGoalView(g, now))
	}
	NewJSONResponse().Data(views).Send(w)
}

func (s *Server) handleGetGoal(w http.ResponseWriter, r *http.Request) {
	g, ok := s.goals.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, core.ErrGoalNotFound.Error(), nil)
		return
	}
	NewJSONResponse().Data(newGoalView(g, s.goals.Now())).Send(w)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	// multipart framing needs some room on top of the picture itself
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+1<<20)

	draft, picture, view, err := parseCreateGoal(r, s.maxUploadBytes)
	if err != nil {
		s.writeRequestError(w, r, err)
		return
	}
	if int64(len(picture)) > s.maxUploadBytes {
		s.writeRequestError(w, r, errTooLarge)
		return
	}

	g, err := s.goals.CreateGoal(r.Context(), draft, picture, view)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/goals/"+g.ID).
		Data(newGoalView(g, s.goals.Now())).
		Send(w)
}

// handleDeleteGoal answers 204 whether or not the goal existed.
func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if err := s.goals.DeleteGoal(r.Context(), r.PathValue("id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRecordTransaction(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)

	kind, amount, note, err := parseTransaction(r)
	if err != nil {
		s.writeRequestError(w, r, err)
		return
	}
	g, err := s.goals.RecordTransaction(r.Context(), r.PathValue("id"), kind, amount, note)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Data(newGoalView(g, s.goals.Now())).Send(w)
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	points, err := s.goals.Series(id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Data(seriesView{GoalID: id, Points: points}).Send(w)
}

func (s *Server) handleAdvice(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	text, err := s.goals.Advice(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	NewJSONResponse().Data(adviceView{GoalID: id, Advice: text}).Send(w)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	g, ok := s.goals.Get(r.PathValue("id"))
	if !ok || len(g.Image) == 0 {
		writeError(w, http.StatusNotFound, "image not found", nil)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	_, _ = w.Write(g.Image)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(newSummaryView(s.goals.Summary())).Send(w)
}

// writeRequestError answers a request that could not be parsed or validated.
func (s *Server) writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	var fields fieldErrors
	switch {
	case errors.As(err, &fields):
		writeError(w, http.StatusUnprocessableEntity, "validation failed", fields)
	case errors.Is(err, errTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error(), nil)
	case errors.Is(err, errBadMediaType):
		writeError(w, http.StatusUnsupportedMediaType, err.Error(), nil)
	default:
		log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected request body", log.FieldError, err.Error())
		writeError(w, http.StatusBadRequest, errBadBody.Error(), nil)
	}
}

// writeServiceError maps GoalService errors onto status codes.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrGoalNotFound):
		writeError(w, http.StatusNotFound, core.ErrGoalNotFound.Error(), nil)
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusUnprocessableEntity, validationMessage(err), nil)
	case r.Context().Err() != nil && errors.Is(err, r.Context().Err()):
		// client went away; nothing useful to send
		w.WriteHeader(http.StatusServiceUnavailable)
	default:
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", log.FieldPath, r.URL.Path, log.FieldError, err.Error())
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// validationMessage drops the ErrInvalidInput prefix for the client.
func validationMessage(err error) string {
	return strings.TrimPrefix(err.Error(), services.ErrInvalidInput.Error()+": ")
}
