package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/maanisingh/Accounting-software-sub001/internal/observability"
	"github.com/maanisingh/Accounting-software-sub001/internal/platform/httpx"
	"github.com/maanisingh/Accounting-software-sub001/internal/shared"
)

// Tenant headers set by the upstream gateway.
const (
	HeaderCompanyID      = "X-Company-ID"
	HeaderUserID         = "X-User-ID"
	HeaderIdempotencyKey = "Idempotency-Key"
)

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger      *slog.Logger
	Config      *Config
	Metrics     *observability.Metrics
	Idempotency *shared.IdempotencyStore
}

// MiddlewareStack installs the API middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		SSLRedirect:        cfg.Config.IsProduction(),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					logger.Warn("secure headers blocked request", slog.Any("error", err))
					httpx.Problem(w, http.StatusBadRequest, "Bad Request", "request rejected")
					return
				}
				next.ServeHTTP(w, r)
			})
		},
	}
	if cfg.Config != nil && cfg.Config.RateLimit > 0 {
		middlewares = append(middlewares, httprate.Limit(cfg.Config.RateLimit, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
	}
	middlewares = append(middlewares, TenantMiddleware(logger))
	if cfg.Idempotency != nil {
		middlewares = append(middlewares, IdempotencyMiddleware(cfg.Idempotency, logger))
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	return middlewares
}

// TenantMiddleware reads the tenant headers into the request actor. Requests without
// a company header pass through without an actor; malformed headers are rejected.
func TenantMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawCompany := strings.TrimSpace(r.Header.Get(HeaderCompanyID))
			if rawCompany == "" {
				next.ServeHTTP(w, r)
				return
			}
			companyID, err := strconv.ParseInt(rawCompany, 10, 64)
			if err != nil || companyID <= 0 {
				logger.Warn("invalid tenant header", slog.String("value", rawCompany))
				httpx.RespondError(w, shared.NewValidationError("invalid company header", HeaderCompanyID, "must be a positive integer"))
				return
			}
			var userID int64
			if rawUser := strings.TrimSpace(r.Header.Get(HeaderUserID)); rawUser != "" {
				userID, err = strconv.ParseInt(rawUser, 10, 64)
				if err != nil || userID < 0 {
					httpx.RespondError(w, shared.NewValidationError("invalid user header", HeaderUserID, "must be a non negative integer"))
					return
				}
			}
			ctx := shared.ContextWithActor(r.Context(), shared.Actor{CompanyID: companyID, UserID: userID})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdempotencyMiddleware rejects replays of mutating requests that carry an
// Idempotency-Key. Keys are scoped per company and top level route. A request that
// does not succeed releases its key so the client can retry.
func IdempotencyMiddleware(store *shared.IdempotencyStore, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if key == "" || !mutating(r.Method) {
				next.ServeHTTP(w, r)
				return
			}
			module := idempotencyModule(r)
			if err := store.CheckAndInsert(r.Context(), key, module); err != nil {
				if errors.Is(err, shared.ErrIdempotencyConflict) {
					httpx.RespondError(w, err)
					return
				}
				logger.Error("idempotency check", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "idempotency store unavailable")
				return
			}
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			if status < 200 || status >= 300 {
				if err := store.Delete(context.WithoutCancel(r.Context()), key, module); err != nil {
					logger.Warn("release idempotency key", slog.String("module", module), slog.Any("error", err))
				}
			}
		})
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func idempotencyModule(r *http.Request) string {
	segment := strings.Trim(r.URL.Path, "/")
	if i := strings.IndexByte(segment, '/'); i >= 0 {
		segment = segment[:i]
	}
	if segment == "" {
		segment = "root"
	}
	company := "0"
	if actor, ok := shared.ActorFromContext(r.Context()); ok {
		company = strconv.FormatInt(actor.CompanyID, 10)
	}
	return company + ":" + segment
}
