package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/hugomanns/realtime-chat/internal/errs"
	"github.com/hugomanns/realtime-chat/internal/relay"
)

const maxBodyBytes = 1 << 20

func (a *api) sendMessage(w http.ResponseWriter, r *http.Request) {
	caller, err := a.Verifier.FromRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	var in relay.SendInput
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&in); err != nil {
		a.writeError(w, r, fmt.Errorf("decode body: %v: %w", err, errs.ErrValidation))
		return
	}
	in.SenderID = caller

	m, err := a.Messages.Send(r.Context(), in)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *api) history(w http.ResponseWriter, r *http.Request) {
	caller, err := a.Verifier.FromRequest(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			a.writeError(w, r, fmt.Errorf("bad limit %q: %w", raw, errs.ErrValidation))
			return
		}
	}

	msgs, err := a.Messages.History(r.Context(), caller, mux.Vars(r)["id"], limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (a *api) userStatus(w http.ResponseWriter, r *http.Request) {
	if _, err := a.Verifier.FromRequest(r); err != nil {
		a.writeError(w, r, err)
		return
	}

	p, err := a.Presence.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type health struct {
	Status      string            `json:"status"`
	Connections int               `json:"connections"`
	BoundUsers  int               `json:"boundUsers"`
	Checks      map[string]string `json:"checks,omitempty"`
}

func (a *api) healthz(w http.ResponseWriter, r *http.Request) {
	h := health{Status: "ok", Checks: make(map[string]string, len(a.Checks))}
	if a.Connections != nil {
		h.Connections = a.Connections.Count()
	}
	if a.Bound != nil {
		h.BoundUsers = a.Bound.Count()
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	code := http.StatusOK
	for name, ping := range a.Checks {
		if err := ping(ctx); err != nil {
			a.Log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			h.Checks[name] = "unavailable"
			h.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		h.Checks[name] = "ok"
	}
	writeJSON(w, code, h)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (a *api) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		a.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, code, map[string]string{"error": errs.Public(err)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
