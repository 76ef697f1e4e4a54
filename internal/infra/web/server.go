package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"healthtrack-billing/internal/domain/model"
	"healthtrack-billing/internal/infra/logging"
	"healthtrack-billing/internal/usecase"
)

// EventDecoder verifies a raw webhook delivery and decodes it into the
// typed billing event union.
type EventDecoder interface {
	Decode(payload []byte, sigHeader string) (model.BillingEvent, error)
}

type Server struct {
	reconcileUC   usecase.ReconcileUseCase
	entitlementUC usecase.EntitlementUseCase
	catalogUC     usecase.CatalogUseCase
	checkoutUC    usecase.CheckoutUseCase
	decoder       EventDecoder
	auth          *AuthManager
	apiKey        string
	log           *zerolog.Logger
}

func NewServer(
	reconcileUC usecase.ReconcileUseCase,
	entitlementUC usecase.EntitlementUseCase,
	catalogUC usecase.CatalogUseCase,
	checkoutUC usecase.CheckoutUseCase,
	decoder EventDecoder,
	auth *AuthManager,
	apiKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		reconcileUC:   reconcileUC,
		entitlementUC: entitlementUC,
		catalogUC:     catalogUC,
		checkoutUC:    checkoutUC,
		decoder:       decoder,
		auth:          auth,
		apiKey:        apiKey,
		log:           &l,
	}
}

// Router assembles the full route tree. The webhook endpoint is
// authenticated by its signature, not by the API auth middleware.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(traceID)
	r.Use(requestLogger(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/webhook/stripe", s.handleWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/tiers", s.handleListTiers)
		r.Post("/checkout-session", s.handleCreateCheckoutSession)
		r.Post("/billing-portal", s.handleCreatePortalSession)

		r.Route("/users/{userID}", func(r chi.Router) {
			r.Use(s.userScopeMiddleware)
			r.Get("/subscription", s.handleGetSubscription)
			r.Get("/entitlements", s.handleGetEntitlements)
			r.Get("/history", s.handleGetHistory)
		})
	})

	return r
}

// authMiddleware accepts either the service API key or a valid user
// session token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := bearerToken(r)
		if tok == "" {
			if _, err := r.Cookie(s.auth.cfg.CookieName); err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		if s.apiKey != "" && tok == s.apiKey {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSessionUser(r.Context(), claims.Subject)))
	})
}

// userScopeMiddleware blocks a session token from reading another user's
// data. Service callers (API key) pass through unscoped.
func (s *Server) userScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := chi.URLParam(r, "userID")
		sessionUser, ok := sessionUserFrom(r.Context())
		if ok && sessionUser != userID {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.WithUserID(r.Context(), userID)))
	})
}
