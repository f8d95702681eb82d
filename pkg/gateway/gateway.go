// Package gateway exposes the engine's read-only views and entry points
// over local HTTP for the presentation layer: conversation summaries,
// message logs, selection and send. Reads are side-effect free and safe
// to repeat.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"chatcore/pkg/directory"
	"chatcore/pkg/logger"
	"chatcore/pkg/models"
	"chatcore/pkg/session"
	"chatcore/pkg/store"
	"chatcore/pkg/validation"
)

// Gateway serves the HTTP view of one engine instance.
type Gateway struct {
	ctrl  *session.Controller
	dir   *directory.Directory
	store *store.Store
	ready func() bool
}

// New returns a gateway over the given engine components. ready reports
// startup completion for /readyz; nil means always ready.
func New(ctrl *session.Controller, dir *directory.Directory, st *store.Store, ready func() bool) *Gateway {
	if ready == nil {
		ready = func() bool { return true }
	}
	return &Gateway{ctrl: ctrl, dir: dir, store: st, ready: ready}
}

// Handler builds the router.
func (g *Gateway) Handler() http.Handler {
	r := mux.NewRouter()
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/conversations", g.listConversations).Methods(http.MethodGet)
	v1.HandleFunc("/conversations", g.createConversation).Methods(http.MethodPost)
	v1.HandleFunc("/conversations/{id}/messages", g.listMessages).Methods(http.MethodGet)
	v1.HandleFunc("/conversations/{id}/messages", g.sendMessage).Methods(http.MethodPost)
	v1.HandleFunc("/selection", g.getSelection).Methods(http.MethodGet)
	v1.HandleFunc("/selection", g.setSelection).Methods(http.MethodPut)
	v1.HandleFunc("/selection", g.clearSelection).Methods(http.MethodDelete)

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", g.readyz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (g *Gateway) listConversations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	writeJSON(w, http.StatusOK, struct {
		Conversations []models.Summary `json:"conversations"`
	}{Conversations: g.dir.List(q)})
}

func (g *Gateway) createConversation(w http.ResponseWriter, r *http.Request) {
	var u models.User
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validation.User(u); err != nil {
		writeEngineError(w, err)
		return
	}
	id, err := g.dir.Upsert(u)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	sm, _ := g.dir.Summary(id)
	writeJSON(w, http.StatusOK, sm)
}

func (g *Gateway) listMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	writeJSON(w, http.StatusOK, struct {
		Conversation string           `json:"conversation"`
		Messages     []models.Message `json:"messages"`
	}{Conversation: id, Messages: g.store.Messages(id)})
}

func (g *Gateway) sendMessage(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	tempID, err := g.ctrl.Send(id, body.Content)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	logger.Info("message_send_accepted", "conversation", id, "temp_id", tempID)
	writeJSON(w, http.StatusAccepted, map[string]string{"temp_id": tempID})
}

func (g *Gateway) getSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"conversation": g.ctrl.Active()})
}

func (g *Gateway) setSelection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Conversation string `json:"conversation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := g.ctrl.Select(body.Conversation); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"conversation": body.Conversation})
}

func (g *Gateway) clearSelection(w http.ResponseWriter, r *http.Request) {
	_ = g.ctrl.Select("")
	w.WriteHeader(http.StatusNoContent)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (g *Gateway) readyz(w http.ResponseWriter, r *http.Request) {
	if !g.ready() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeEngineError maps engine sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrEmptyContent),
		errors.Is(err, validation.ErrContentTooLong),
		errors.Is(err, validation.ErrInvalidUser),
		errors.Is(err, directory.ErrSelfConversation),
		errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, directory.ErrUnknownConversation):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
