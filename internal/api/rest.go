// Package api is the HTTP shim consumed by the console front end: readiness
// checks, session start/status, and the score query surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/flycamp/arcade/internal/readiness"
	"github.com/flycamp/arcade/internal/server"
)

type Handler struct {
	srv *server.Server
	log *zap.Logger
}

func NewHTTPHandler(srv *server.Server, log *zap.Logger) http.Handler {
	h := &Handler{srv: srv, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", h.handlePing)
	mux.HandleFunc("/check", h.handleCheck)
	mux.HandleFunc("/play", h.handlePlay)
	mux.HandleFunc("/abort", h.handleAbort)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/bests", h.handleBests)
	mux.HandleFunc("/plays", h.handlePlays)

	return mux
}

func (h *Handler) handlePing(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"msg": "pong from arcaded"})
}

// handleCheck runs the aggregated readiness check. The response always
// carries the full per-step report, pass or fail.
func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	var req struct {
		Devices   []string `json:"devices,omitempty"`
		TimeoutS  float64  `json:"timeout_s,omitempty"`
		Visual    string   `json:"visual,omitempty"`
		NoReset   bool     `json:"no_reset,omitempty"`
		NoPrepare bool     `json:"no_prepare,omitempty"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	opts := readiness.CheckOptions{
		Devices:     req.Devices,
		VisualCue:   req.Visual,
		SkipReset:   req.NoReset,
		SkipPrepare: req.NoPrepare,
	}
	if req.TimeoutS > 0 {
		opts.Timeout = time.Duration(req.TimeoutS * float64(time.Second))
	}
	res := h.srv.RunCheck(r.Context(), opts)
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	id, err := h.srv.StartSession()
	if err != nil {
		if errors.Is(err, server.ErrSessionInProgress) {
			h.writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.log.Error("start session", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

func (h *Handler) handleAbort(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	if !h.srv.Abort() {
		h.writeError(w, http.StatusNotFound, "no session in progress")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"msg": "session aborted"})
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.srv.Status())
}

func (h *Handler) handleBests(w http.ResponseWriter, r *http.Request) {
	bests, err := h.srv.Ledger().Bests(r.Context())
	if err != nil {
		h.log.Error("list bests", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list bests")
		return
	}
	h.writeJSON(w, http.StatusOK, bests)
}

func (h *Handler) handlePlays(w http.ResponseWriter, r *http.Request) {
	token, err := strconv.Atoi(r.URL.Query().Get("token"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "token required")
		return
	}
	plays, err := h.srv.Ledger().Plays(r.Context(), token)
	if err != nil {
		h.log.Error("list plays", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to list plays")
		return
	}
	h.writeJSON(w, http.StatusOK, plays)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
	h.log.Warn("http error", zap.Int("status", status), zap.String("msg", msg))
}
