package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/sessions"
	"github.com/example/ev-rescue/internal/workflow"
)

var (
	errBadRequest    = errors.New("bad request")
	errUnknownAction = errors.New("unknown action")
)

type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// sessionView is the API representation of a session: its snapshot plus the
// notifications raised since the previous response.
type sessionView struct {
	workflow.Snapshot
	Notifications []models.Notification `json:"notifications,omitempty"`
}

func viewOf(sess *workflow.Session) sessionView {
	return sessionView{Snapshot: sess.Snapshot(), Notifications: sess.DrainNotifications()}
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Role workflow.Role `json:"role"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.sessions.Create(body.Role)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sess, err := s.sessions.Get(vars["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.applyJSONAction(r, sess, vars["action"]); err != nil {
		s.writeErrorWith(w, r, err, sess)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) applyJSONAction(r *http.Request, sess *workflow.Session, action string) error {
	ctx := r.Context()
	switch action {
	case "submit":
		var body struct {
			models.RescueRequest
			BatteryLevel *int `json:"battery_level"`
		}
		if err := decodeJSON(r, &body); err != nil {
			return err
		}
		req := body.RescueRequest
		if body.BatteryLevel == nil {
			return missingBattery(req)
		}
		req.BatteryLevel = *body.BatteryLevel
		return sess.Submit(ctx, req)
	case "register":
		var reg models.DriverRegistration
		if err := decodeJSON(r, &reg); err != nil {
			return err
		}
		return sess.Register(ctx, reg)
	case "login":
		var creds models.Credentials
		if err := decodeJSON(r, &creds); err != nil {
			return err
		}
		return sess.Login(ctx, creds)
	case "accept":
		var body struct {
			RequestID string `json:"request_id"`
		}
		if err := decodeJSON(r, &body); err != nil {
			return err
		}
		return sess.Accept(ctx, body.RequestID)
	case "pay":
		return sess.Pay(ctx)
	case "rate":
		var rating models.Rating
		if err := decodeJSON(r, &rating); err != nil {
			return err
		}
		return sess.Rate(ctx, rating.Stars, rating.Feedback)
	case "reset":
		return sess.Reset(ctx)
	}
	return fmt.Errorf("%w: %s", errUnknownAction, action)
}

// missingBattery reports an absent battery level together with whatever
// else the form is missing.
func missingBattery(req models.RescueRequest) error {
	verr := models.ValidationError{}
	var rest models.ValidationError
	if errors.As(req.Validate(), &rest) {
		for field, msg := range rest {
			verr[field] = msg
		}
	}
	verr["battery_level"] = "is required"
	return verr
}

func (s *Server) handlePreviewRating(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body struct {
		Stars int `json:"stars"`
	}
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := sess.PreviewRating(body.Stars); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleListRequests(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.dir.Requests(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := s.dir.Drivers(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.ContentLength == 0 {
		return fmt.Errorf("%w: empty body", errBadRequest)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var verr models.ValidationError
	switch {
	case errors.As(err, &verr),
		errors.Is(err, workflow.ErrRatingRequired),
		errors.Is(err, workflow.ErrRatingOutOfRange),
		errors.Is(err, workflow.ErrUnknownRequest):
		return http.StatusUnprocessableEntity
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrPaymentInProgress):
		return http.StatusConflict
	case errors.Is(err, workflow.ErrSessionClosed),
		errors.Is(err, sessions.ErrUnknownSession),
		errors.Is(err, errUnknownAction):
		return http.StatusNotFound
	case errors.Is(err, errBadRequest),
		errors.Is(err, sessions.ErrUnknownRole):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.writeErrorWith(w, r, err, nil)
}

// writeErrorWith renders err as JSON. When sess is set the notifications it
// raised (a missing rating, for one) travel with the error.
func (s *Server) writeErrorWith(w http.ResponseWriter, r *http.Request, err error, sess *workflow.Session) {
	status := statusFor(err)
	body := struct {
		errorBody
		Notifications []models.Notification `json:"notifications,omitempty"`
	}{errorBody: errorBody{Error: err.Error()}}
	var verr models.ValidationError
	if errors.As(err, &verr) {
		body.Error = "validation failed"
		body.Fields = verr
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		body.Error = "internal error"
	}
	if sess != nil {
		body.Notifications = sess.DrainNotifications()
	}
	writeJSON(w, status, body)
}
