// Package httpapi exposes the notification service over HTTP.
//
// Caller routes require a bearer token whose subject is the calling user.
// The ingress route that creates notifications for arbitrary users is only
// mounted when a separate service token verifier is configured. Responses use a JSON envelope with data, meta and error fields, and new
// notifications can be followed live through a server-sent event stream.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/clientip"
	"github.com/dmitrymomot/notifykit/pkg/jwt"
	"github.com/dmitrymomot/notifykit/pkg/logger"
	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/ratelimiter"
	"github.com/dmitrymomot/notifykit/pkg/requestid"
)

const maxBodyBytes = 64 << 10

// Streamer supplies live notifications for the event stream.
// *notifications.BroadcastDeliverer satisfies it.
type Streamer interface {
	Subscribe(ctx context.Context, userID string) broadcast.Subscription[notifications.Notification]
}

// Handler serves the notification routes.
type Handler struct {
	svc       *notifications.Service
	tokens    *jwt.Service
	ingress   *jwt.Service
	streamer  Streamer
	limiter   ratelimiter.Limiter
	ipHeaders []string
	logger    *slog.Logger
	now       func() time.Time
	heartbeat time.Duration
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithStreamer enables GET /notifications/stream.
func WithStreamer(s Streamer) Option {
	return func(h *Handler) { h.streamer = s }
}

// WithIngressTokens mounts POST /internal/notifications behind tokens.
// The verifier must use a different secret than the caller tokens; a caller
// token presented on the ingress route is answered with 403.
func WithIngressTokens(tokens *jwt.Service) Option {
	return func(h *Handler) { h.ingress = tokens }
}

// WithRateLimiter limits requests per authenticated user.
func WithRateLimiter(l ratelimiter.Limiter) Option {
	return func(h *Handler) { h.limiter = l }
}

// WithClientIPHeaders sets the proxy headers trusted for the caller address.
func WithClientIPHeaders(headers ...string) Option {
	return func(h *Handler) { h.ipHeaders = headers }
}

// WithClock sets the time source for relative ages.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithHeartbeat sets how often an idle event stream sends a keep-alive comment.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

func New(svc *notifications.Service, tokens *jwt.Service, opts ...Option) *Handler {
	h := &Handler{
		svc:       svc,
		tokens:    tokens,
		logger:    slog.Default(),
		now:       time.Now,
		heartbeat: 25 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router returns the chi router with every route mounted at its root.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(requestid.Middleware, clientip.Middleware(h.ipHeaders...), middleware.Recoverer, h.logRequests)

	r.Route("/notifications", func(r chi.Router) {
		r.Use(jwt.Middleware(h.tokens, unauthorized,
			jwt.BearerTokenExtractor,
			jwt.QueryTokenExtractor("access_token"),
		))
		if h.limiter != nil {
			r.Use(ratelimiter.Middleware(h.limiter, userID,
				ratelimiter.WithMiddlewareLogger(h.logger),
				ratelimiter.WithMiddlewareClock(h.now),
				ratelimiter.WithDenyHandler(rateLimited),
			))
		}
		r.Get("/", h.list)
		r.Patch("/read", h.markAllRead)
		r.Get("/stream", h.stream)
		r.Get("/{id}", h.get)
		r.Patch("/{id}/read", h.markRead)
	})

	if h.ingress != nil {
		r.With(jwt.Middleware(h.ingress, h.ingressDenied, jwt.BearerTokenExtractor)).
			Post("/internal/notifications", h.create)
	}

	return r
}

// ingressDenied tells a signed-in caller apart from an anonymous one so a
// user token on the service route reads as forbidden, not unauthenticated.
func (h *Handler) ingressDenied(w http.ResponseWriter, r *http.Request, err error) {
	if tok, ok := jwt.BearerTokenExtractor(r); ok {
		if _, uerr := h.tokens.Subject(tok); uerr == nil {
			writeError(w, http.StatusForbidden, CodeForbidden, "service credential required")
			return
		}
	}
	unauthorized(w, r, err)
}

func unauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	writeError(w, http.StatusUnauthorized, CodeUnauthorized, err.Error())
}

func rateLimited(w http.ResponseWriter, _ *http.Request, _ *ratelimiter.Result) {
	writeError(w, http.StatusTooManyRequests, CodeRateLimited, "too many requests")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "Notification request failed", logger.Error(err))
		writeError(w, status, code, http.StatusText(status))
		return
	}
	writeError(w, status, code, err.Error())
}

func (h *Handler) item(n notifications.Notification, now time.Time) Item {
	return Item{Notification: n, Tone: n.Type.Tone(), Age: notifications.RelativeAge(n.CreatedAt, now)}
}

func userID(r *http.Request) string {
	id, _ := jwt.SubjectFromContext(r.Context())
	return id
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	pred, err := notifications.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	all, err := h.svc.ListForUser(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	now := h.now()
	items := make([]Item, 0, len(all))
	for n := range notifications.Filter(all, pred) {
		items = append(items, h.item(n, now))
	}

	writeJSON(w, http.StatusOK, Envelope[[]Item]{
		Data: items,
		Meta: &Meta{UnreadCount: notifications.CountUnread(all), Total: len(items)},
	})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope[Item]{Data: h.item(n, h.now())})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.MarkRead(r.Context(), chi.URLParam(r, "id"), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope[Item]{Data: h.item(n, h.now())})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	updated, err := h.svc.MarkAllRead(r.Context(), userID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope[MarkAllResult]{Data: MarkAllResult{Updated: updated}})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	n, err := h.svc.Create(r.Context(), req.UserID, notifications.Type(req.Type), req.Message)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, Envelope[Item]{Data: h.item(n, h.now())})
}

// stream writes each new notification of the caller as an SSE event named
// "notification" until the client disconnects or the server stops.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	if h.streamer == nil {
		writeError(w, http.StatusNotImplemented, CodeUnavailable, "live stream is not enabled")
		return
	}

	rc := http.NewResponseController(w)
	ctx := r.Context()
	sub := h.streamer.Subscribe(ctx, userID(r))
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.WarnContext(ctx, "Event stream is not flushable", logger.Error(err))
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	events := sub.C()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case n, ok := <-events:
			if !ok {
				if err := sub.Err(); err != nil {
					h.logger.InfoContext(ctx, "Event stream ended", logger.Error(err))
				}
				return
			}
			data, err := json.Marshal(h.item(n, h.now()))
			if err != nil {
				h.logger.ErrorContext(ctx, "Failed to encode stream event", logger.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "id: %s\nevent: notification\ndata: %s\n\n", n.ID, data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		level := slog.LevelDebug
		if ww.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		h.logger.LogAttrs(r.Context(), level, "HTTP request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			logger.Duration(time.Since(start)),
		)
	})
}
