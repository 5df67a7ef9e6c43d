package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/sessions"
	"github.com/example/ev-rescue/internal/workflow"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = map[string]string{
	"home":    "templates/home.html",
	"about":   "templates/about.html",
	"contact": "templates/contact.html",
	"arvr":    "templates/arvr.html",
	"rescue":  "templates/rescue.html",
	"driver":  "templates/driver.html",
}

var sessionCookies = map[workflow.Role]string{
	workflow.RoleCustomer: "evresq_customer",
	workflow.RoleDriver:   "evresq_driver",
}

type pageData struct {
	Title         string
	Active        string
	Notifications []models.Notification
	Errors        map[string]string
	Form          url.Values
	Snap          workflow.Snapshot
	Guide         []models.GuideStep
	Sent          bool
}

var templateFuncs = template.FuncMap{
	"pct":     func(v float64) string { return fmt.Sprintf("%.0f", v) },
	"minutes": func(sec float64) int { return int(math.Ceil(sec / 60)) },
	"levels":  func() []int { return []int{1, 2, 3, 4, 5} },
	"title": func(s workflow.Stage) string {
		v := string(s)
		if v == "" {
			return v
		}
		return strings.ToUpper(v[:1]) + v[1:]
	},
}

func parsePages() (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(pageFiles))
	for name, file := range pageFiles {
		t, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/mission.html", file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		out[name] = t
	}
	return out, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, status int, data pageData) {
	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("render page", zap.String("page", page), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "home", http.StatusOK, pageData{Title: "EV RESQ", Active: "home"})
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "about", http.StatusOK, pageData{Title: "About", Active: "about"})
}

func (s *Server) handleARVR(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "arvr", http.StatusOK, pageData{Title: "AR/VR Demo", Active: "arvr", Guide: s.dir.Guide()})
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "contact", http.StatusOK, pageData{Title: "Contact", Active: "contact"})
}

func (s *Server) handleContactSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	msg := models.ContactMessage{
		Name:    r.PostForm.Get("name"),
		Email:   r.PostForm.Get("email"),
		Subject: r.PostForm.Get("subject"),
		Message: r.PostForm.Get("message"),
	}
	data := pageData{Title: "Contact", Active: "contact", Form: r.PostForm}
	if err := msg.Validate(); err != nil {
		data.Errors = fieldErrors(err)
		s.render(w, r, "contact", http.StatusUnprocessableEntity, data)
		return
	}
	s.logger.Info("contact message received", zap.String("email", msg.Email), zap.String("subject", msg.Subject))
	data.Sent = true
	data.Form = nil
	data.Notifications = []models.Notification{{
		Title:       "Message Sent! ⚡",
		Description: "We'll get back to you within 24 hours.",
		Variant:     models.VariantSuccess,
	}}
	s.render(w, r, "contact", http.StatusOK, data)
}

func (s *Server) handleRescuePage(w http.ResponseWriter, r *http.Request) {
	s.workflowPage(w, r, workflow.RoleCustomer)
}

func (s *Server) handleDriverPage(w http.ResponseWriter, r *http.Request) {
	s.workflowPage(w, r, workflow.RoleDriver)
}

func (s *Server) handleRescueAction(w http.ResponseWriter, r *http.Request) {
	s.workflowAction(w, r, workflow.RoleCustomer)
}

func (s *Server) handleDriverAction(w http.ResponseWriter, r *http.Request) {
	s.workflowAction(w, r, workflow.RoleDriver)
}

func pageFor(role workflow.Role) (page, path, title string) {
	if role == workflow.RoleDriver {
		return "driver", "/driver-portal", "Driver Portal"
	}
	return "rescue", "/request-rescue", "Request Rescue"
}

func (s *Server) workflowPage(w http.ResponseWriter, r *http.Request, role workflow.Role) {
	sess, err := s.sessionFor(w, r, role)
	if err != nil {
		s.logger.Error("session unavailable", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.renderWorkflow(w, r, sess, http.StatusOK, nil, nil)
}

func (s *Server) renderWorkflow(w http.ResponseWriter, r *http.Request, sess *workflow.Session, status int, errs map[string]string, form url.Values) {
	page, _, title := pageFor(sess.Role())
	s.render(w, r, page, status, pageData{
		Title:         title,
		Active:        page,
		Notifications: sess.DrainNotifications(),
		Errors:        errs,
		Form:          form,
		Snap:          sess.Snapshot(),
	})
}

// workflowAction applies a form post and redirects back to the page, or
// re-renders it with the errors when the action was refused.
func (s *Server) workflowAction(w http.ResponseWriter, r *http.Request, role workflow.Role) {
	sess, err := s.sessionFor(w, r, role)
	if err != nil {
		s.logger.Error("session unavailable", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	err = applyFormAction(r, sess, mux.Vars(r)["action"])
	if err == nil {
		_, path, _ := pageFor(role)
		http.Redirect(w, r, path, http.StatusSeeOther)
		return
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("workflow action failed", zap.Error(err))
	}
	s.renderWorkflow(w, r, sess, status, fieldErrors(err), r.PostForm)
}

func applyFormAction(r *http.Request, sess *workflow.Session, action string) error {
	ctx := r.Context()
	f := r.PostForm
	customer := sess.Role() == workflow.RoleCustomer
	switch {
	case action == "submit" && customer:
		battery, err := cast.ToIntE(strings.TrimSpace(f.Get("battery_level")))
		if err != nil {
			return models.ValidationError{"battery_level": "must be a number"}
		}
		return sess.Submit(ctx, models.RescueRequest{
			Name:           f.Get("name"),
			Phone:          f.Get("phone"),
			Location:       f.Get("location"),
			VehicleModel:   f.Get("vehicle_model"),
			VehicleNumber:  f.Get("vehicle_number"),
			BatteryLevel:   battery,
			AdditionalInfo: f.Get("additional_info"),
		})
	case action == "register" && !customer:
		return sess.Register(ctx, models.DriverRegistration{
			Name:  f.Get("name"),
			Email: f.Get("email"),
			Phone: f.Get("phone"),
			City:  f.Get("city"),
		})
	case action == "login" && !customer:
		return sess.Login(ctx, models.Credentials{Email: f.Get("email"), Password: f.Get("password")})
	case action == "accept" && !customer:
		return sess.Accept(ctx, f.Get("request_id"))
	case action == "pay":
		return sess.Pay(ctx)
	case action == "rate":
		stars := cast.ToInt(strings.TrimSpace(f.Get("stars")))
		return sess.Rate(ctx, stars, f.Get("feedback"))
	case action == "reset":
		return sess.Reset(ctx)
	}
	return fmt.Errorf("%w: %s", errUnknownAction, action)
}

// fieldErrors flattens err for the templates; non-field errors go under "_".
func fieldErrors(err error) map[string]string {
	var verr models.ValidationError
	if errors.As(err, &verr) {
		out := make(map[string]string, len(verr))
		for k, v := range verr {
			out[k] = v
		}
		return out
	}
	if errors.Is(err, workflow.ErrRatingRequired) || errors.Is(err, workflow.ErrRatingOutOfRange) {
		return map[string]string{"stars": err.Error()}
	}
	return map[string]string{"_": err.Error()}
}

// sessionFor returns the visitor's session for role, starting a new one when
// the cookie is missing or the old session expired.
func (s *Server) sessionFor(w http.ResponseWriter, r *http.Request, role workflow.Role) (*workflow.Session, error) {
	name := sessionCookies[role]
	if c, err := r.Cookie(name); err == nil && c.Value != "" {
		sess, err := s.sessions.Get(c.Value)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, sessions.ErrUnknownSession) {
			return nil, err
		}
	}
	sess, err := s.sessions.Create(role)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    sess.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess, nil
}
