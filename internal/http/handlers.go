package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/roniherschmann/linkpulse/internal/auth"
	"github.com/roniherschmann/linkpulse/internal/core"
	"github.com/roniherschmann/linkpulse/internal/metrics"
)

const maxBodyBytes = 1 << 16

type shortenReq struct {
	LongURL     string `json:"longUrl"`
	CustomAlias string `json:"customAlias,omitempty"`
	Topic       string `json:"topic,omitempty"`
}

type shortenResp struct {
	ShortURL  string    `json:"shortUrl"`
	CreatedAt time.Time `json:"createdAt"`
}

type errorResp struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (rt *Router) handleShorten(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !rt.limiter.Allow(ip) {
		writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
		return
	}

	var req shortenReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "invalid json")
		return
	}
	link, created, err := rt.svc.Shorten(r.Context(), core.ShortenInput{
		Target: req.LongURL,
		Alias:  req.CustomAlias,
		Topic:  req.Topic,
		Owner:  auth.OwnerFrom(r.Context()),
	})
	if err != nil {
		rt.fail(w, r, err)
		return
	}

	status := http.StatusCreated
	if !created {
		status = http.StatusOK
	}
	writeJSON(w, shortenResp{ShortURL: rt.shortURL(r, link.Alias), CreatedAt: link.CreatedAt}, status)
}

func (rt *Router) handleRedirect(w http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	target, err := rt.svc.Resolve(r.Context(), alias, r.UserAgent(), clientIP(r))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	metrics.Redirects.Inc()
	http.Redirect(w, r, target, http.StatusFound)
}

func (rt *Router) handleAliasAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := rt.agg.ForAlias(r.Context(), chi.URLParam(r, "alias"))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, report, http.StatusOK)
}

func (rt *Router) handleTopicAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := rt.agg.ForTopic(r.Context(), chi.URLParam(r, "topic"))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	for i := range report.URLs {
		report.URLs[i].ShortURL = rt.shortURL(r, report.URLs[i].Alias)
	}
	writeJSON(w, report, http.StatusOK)
}

func (rt *Router) handleOverallAnalytics(w http.ResponseWriter, r *http.Request) {
	report, err := rt.agg.ForOwner(r.Context(), auth.OwnerFrom(r.Context()))
	if err != nil {
		rt.fail(w, r, err)
		return
	}
	writeJSON(w, report, http.StatusOK)
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := rt.svc.Ready(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("not ready")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

// fail maps service errors to status codes. Anything unclassified is logged and reported as 500.
func (rt *Router) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *core.ValidationError
	switch {
	case errors.As(err, &ve):
		writeError(w, http.StatusBadRequest, "validation_error", ve.Error())
	case errors.Is(err, core.ErrConflict):
		writeError(w, http.StatusBadRequest, "conflict", "custom alias already in use")
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "not found")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// shortURL uses BASE_URL when set and the request's own origin otherwise.
func (rt *Router) shortURL(r *http.Request, alias string) string {
	base := strings.TrimRight(rt.cfg.BaseURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if p := r.Header.Get("X-Forwarded-Proto"); p != "" && rt.cfg.TrustProxy {
			scheme = p
		}
		base = scheme + "://" + r.Host
	}
	return base + "/shorten/" + alias
}

func writeJSON(w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, errorResp{Error: code, Message: msg}, status)
}

// clientIP is the peer address. Proxy headers reach it only through RealIP when TrustProxy is set.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
