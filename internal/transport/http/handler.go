package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"

	"house-points-service/internal/app"
	"house-points-service/internal/domain"
)

// BootstrapAdmin configures the operator account provisioned by
// POST /admin/bootstrap.
type BootstrapAdmin struct {
	Name     string
	Email    string
	Password string
}

// Handler wires the HTTP surface onto the use cases. Admin routes check
// the X-Admin-Key header against adminKey; when adminKey is empty they are
// unguarded (a documented weak default for local setups, not a
// recommendation).
type Handler struct {
	service   *app.HouseService
	adminKey  string
	bootstrap BootstrapAdmin
	validate  *validator.Validate
	upgrader  websocket.Upgrader
}

func NewHandler(service *app.HouseService, adminKey string, bootstrap BootstrapAdmin) *Handler {
	return &Handler{
		service:   service,
		adminKey:  adminKey,
		bootstrap: bootstrap,
		validate:  validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/signup", h.handleSignup)
	mux.HandleFunc("POST /quiz/submit/{id}", h.handleQuizSubmit)
	mux.HandleFunc("GET /student/dashboard/{id}", h.handleDashboard)
	mux.HandleFunc("GET /admin/overview", h.requireAdmin(h.handleOverview))
	mux.HandleFunc("GET /admin/students", h.requireAdmin(h.handleStudents))
	mux.HandleFunc("POST /admin/points", h.requireAdmin(h.handlePoints))
	mux.HandleFunc("POST /admin/bootstrap", h.requireAdmin(h.handleBootstrap))
	mux.HandleFunc("GET /ws/standings", h.serveStandingsWS)
}

type signupRequest struct {
	Name      string `json:"name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	Phone     string `json:"phone"`
	Instagram string `json:"instagram"`
	LinkedIn  string `json:"linkedin"`
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !h.decode(w, r, &req) {
		return
	}

	student, err := h.service.Signup(r.Context(), app.SignupInput{
		Name:      req.Name,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
		Instagram: req.Instagram,
		LinkedIn:  req.LinkedIn,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"user_id": student.ID,
		"message": "Signup successful",
	})
}

type quizSubmitRequest struct {
	// Answers may be free text (keyword form) or integer literals (numeric
	// clamped form); an all-numeric sequence is scored numerically. An
	// empty sequence is valid and sorts to the first canonical house.
	Answers []string `json:"answers"`
}

func (h *Handler) handleQuizSubmit(w http.ResponseWriter, r *http.Request) {
	var req quizSubmitRequest
	if !h.decode(w, r, &req) {
		return
	}

	house, err := h.service.SubmitQuiz(r.Context(), r.PathValue("id"), req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"assigned_house": string(house)})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.service.Dashboard(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.service.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

func (h *Handler) handleStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.service.Students(r.Context(), r.URL.Query().Get("house"))
	if err != nil {
		writeError(w, err)
		return
	}
	if students == nil {
		students = []domain.Student{}
	}
	writeJSON(w, http.StatusOK, students)
}

type pointsRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Delta     int    `json:"delta"`
	Reason    string `json:"reason" validate:"required"`
}

func (h *Handler) handlePoints(w http.ResponseWriter, r *http.Request) {
	var req pointsRequest
	if !h.decode(w, r, &req) {
		return
	}

	newTotal, err := h.service.ApplyPointsChange(r.Context(), req.StudentID, req.Delta, req.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "new_total": newTotal})
}

func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	_, err := h.service.Bootstrap(r.Context(), h.bootstrap.Name, h.bootstrap.Email, h.bootstrap.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":          true,
		"message":     "Bootstrap complete",
		"admin_email": h.bootstrap.Email,
	})
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.adminKey != "" && r.Header.Get("X-Admin-Key") != h.adminKey {
			writeJSON(w, http.StatusUnauthorized, errorBody{Kind: "unauthorized", Message: "unauthorized admin access"})
			return
		}
		next(w, r)
	}
}

// decode unmarshals and validates the request body; it writes the error
// response itself and reports whether the handler may proceed.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "validation_error", Message: "malformed JSON body"})
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "validation_error", Message: err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// writeError classifies an error into a stable kind before serializing it;
// raw store diagnostics stay in the server log.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrStudentNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: "student not found"})
	case errors.Is(err, domain.ErrHouseNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Kind: "not_found", Message: "house not found"})
	case errors.Is(err, domain.ErrUnknownHouse):
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "validation_error", Message: "unknown house name"})
	case errors.Is(err, domain.ErrInvalidAnswers):
		writeJSON(w, http.StatusBadRequest, errorBody{Kind: "validation_error", Message: "invalid quiz answers"})
	default:
		log.Printf("store error: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Kind: "store_unavailable", Message: "persistent store unavailable"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("write response: %v", err)
	}
}
