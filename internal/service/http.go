// internal/service/http.go
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"olmeda-realtime/internal/auth"
	"olmeda-realtime/internal/lifecycle"
	"olmeda-realtime/internal/logging"
	"olmeda-realtime/internal/models"
	"olmeda-realtime/internal/websocket"
)

// notificationMarker é implementado pelos stores que aceitam marcar notificação como lida
type notificationMarker interface {
	MarkNotificationRead(ctx context.Context, id models.RecordID) error
}

type healthResponse struct {
	Snapshot
	AuthRequired bool                    `json:"authRequired"`
	Identity     string                  `json:"identity,omitempty"`
	Subscription *websocket.Subscription `json:"subscription,omitempty"`
}

type sessionRequest struct {
	Token    string `json:"token"`
	DoctorID string `json:"doctorId"`
}

type identityRequest struct {
	DoctorID string `json:"doctorId"`
}

type lifecycleRequest struct {
	State string `json:"state"`
}

// Handler monta as rotas da API local de status e controle
func (a *Agent) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", a.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	r.Get("/appointments", a.handleAppointments)
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", a.handleNotifications)
		r.Post("/{id}/read", a.handleMarkRead)
	})

	r.Put("/session", a.handleSession)
	r.Put("/identity", a.handleIdentity)
	r.Post("/lifecycle", a.handleLifecycle)
	r.Post("/reconnect", a.handleReconnect)
	return r
}

func (a *Agent) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Snapshot:     a.monitor.Check(r.Context()),
		AuthRequired: a.redirector.AuthRequired(),
		Identity:     a.identity.CurrentIdentity(),
		Subscription: a.client.Subscription(),
	})
}

func (a *Agent) handleAppointments(w http.ResponseWriter, r *http.Request) {
	items, err := a.store.Appointments(r.Context())
	if err != nil {
		a.logger.Error("erro ao listar agendamentos", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "erro ao listar agendamentos")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *Agent) handleNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit inválido")
			return
		}
		limit = n
	}

	items, err := a.store.Notifications(r.Context(), limit)
	if err != nil {
		a.logger.Error("erro ao listar notificações", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "erro ao listar notificações")
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (a *Agent) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	marker, ok := a.store.(notificationMarker)
	if !ok {
		writeError(w, http.StatusNotImplemented, "store não suporta marcar notificação como lida")
		return
	}

	id := models.RecordID(strings.TrimSpace(chi.URLParam(r, "id")))
	if err := marker.MarkNotificationRead(r.Context(), id); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSession recebe o token depois de um novo login e retoma a conexão
func (a *Agent) handleSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		writeError(w, http.StatusBadRequest, "token obrigatório")
		return
	}

	if err := a.redirector.StoreToken(strings.TrimSpace(req.Token)); err != nil {
		a.logger.Error("erro ao gravar token", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "erro ao gravar token")
		return
	}
	if id := strings.TrimSpace(req.DoctorID); id != "" {
		if err := a.setIdentity(id); err != nil {
			writeError(w, http.StatusInternalServerError, "erro ao gravar identidade")
			return
		}
	}

	a.client.EnsureConnected()
	w.WriteHeader(http.StatusAccepted)
}

func (a *Agent) handleIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.DoctorID) == "" {
		writeError(w, http.StatusBadRequest, "doctorId obrigatório")
		return
	}
	if err := a.setIdentity(strings.TrimSpace(req.DoctorID)); err != nil {
		writeError(w, http.StatusInternalServerError, "erro ao gravar identidade")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *Agent) setIdentity(id string) error {
	if err := a.credentials.Set(auth.KeyDoctorID, id); err != nil {
		a.logger.Error("erro ao gravar identidade", logging.Identity(id), logging.Err(err))
		return err
	}
	a.identity.Set(id)
	return nil
}

func (a *Agent) handleLifecycle(w http.ResponseWriter, r *http.Request) {
	var req lifecycleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "corpo inválido")
		return
	}
	state, err := lifecycle.ParseAppState(req.State)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !a.lifecycle.Publish(state) {
		writeError(w, http.StatusServiceUnavailable, "agente encerrando")
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *Agent) handleReconnect(w http.ResponseWriter, r *http.Request) {
	err := a.client.Reconnect(r.Context())
	resp := map[string]string{"state": a.client.State().String()}
	if err != nil {
		resp["error"] = err.Error()
		if errors.Is(err, websocket.ErrClientClosed) {
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
