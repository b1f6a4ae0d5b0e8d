package oracle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/agentoracle/platform/pkg/common/logger"
	"github.com/agentoracle/platform/pkg/common/models"
	"github.com/gorilla/mux"
)

type HTTPHandler struct {
	service *Service
	maxBody int64
}

func NewHTTPHandler(service *Service, maxBody int64) *HTTPHandler {
	return &HTTPHandler{service: service, maxBody: maxBody}
}

func (h *HTTPHandler) Register(router *mux.Router) {
	router.HandleFunc("/oracle/requests", h.handleCreate).Methods(http.MethodPost)
	router.HandleFunc("/oracle/requests", h.handleRecent).Methods(http.MethodGet)
	router.HandleFunc("/oracle/requests/{id}", h.handleResult).Methods(http.MethodGet)
	router.HandleFunc("/oracle/stats", h.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/oracle/agents", h.handleAgents).Methods(http.MethodGet)
}

func (h *HTTPHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	if h.maxBody > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	var req models.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Log.WithError(err).Warn("invalid oracle request payload")
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.service.Create(r.Context(), req)
	if err != nil {
		if IsValidationError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		logger.Log.WithError(err).Error("failed to create oracle request")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(resp)
}

// ResultResponse pairs a request with its submissions.
type ResultResponse struct {
	Request     *Request     `json:"request"`
	Submissions []Submission `json:"submissions"`
}

func (h *HTTPHandler) handleResult(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]

	req, subs, err := h.service.Result(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			http.Error(w, "request not found", http.StatusNotFound)
			return
		}
		logger.Log.WithError(err).Error("failed to fetch oracle result")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(ResultResponse{Request: req, Submissions: subs})
}

func (h *HTTPHandler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	requests, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		logger.Log.WithError(err).Error("failed to list oracle requests")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(requests)
}

func (h *HTTPHandler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to compute oracle stats")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *HTTPHandler) handleAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.service.Agents(r.Context())
	if err != nil {
		logger.Log.WithError(err).Error("failed to list agents")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agents)
}
