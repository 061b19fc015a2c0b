package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stakingcore/node"
	"stakingcore/services/stakingd/audit"
	"stakingcore/services/stakingd/middleware"
)

// Config captures the dependencies required to construct the server.
type Config struct {
	Node      *node.Node
	Audit     *audit.Store
	Auth      middleware.AuthConfig
	RateLimit middleware.RateLimit
	Logger    *slog.Logger
}

// Server exposes the staking core and treasury over HTTP.
type Server struct {
	node   *node.Node
	audit  *audit.Store
	logger *slog.Logger
	auth   *middleware.Authenticator
	limits *middleware.RateLimiter
	obs    *middleware.Observability

	router http.Handler
}

// New constructs the router.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := &Server{
		node:   cfg.Node,
		audit:  cfg.Audit,
		logger: logger,
		auth:   middleware.NewAuthenticator(cfg.Auth, logger),
		limits: middleware.NewRateLimiter(cfg.RateLimit),
		obs:    middleware.NewObservability("stakingd", logger),
	}
	srv.router = srv.buildRouter()
	return srv
}

// Handler exposes the configured HTTP router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Authenticator exposes the token verifier so tests can pin its clock.
func (s *Server) Authenticator() *middleware.Authenticator {
	return s.auth
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(api chi.Router) {
		api.Group(func(public chi.Router) {
			public.Use(s.limits.Middleware("staking"))
			public.With(s.obs.Middleware("staking", "account")).Get("/staking/accounts/{address}", s.handleAccount)
			public.With(s.obs.Middleware("staking", "claim")).Get("/staking/claim", s.handleClaim)
			public.With(s.obs.Middleware("staking", "summary")).Get("/staking/summary", s.handleSummary)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(s.auth.Middleware)

			protected.Group(func(st chi.Router) {
				st.Use(s.limits.Middleware("staking"))
				st.With(s.obs.Middleware("staking", "mint")).Post("/staking/mint", s.handleMint)
				st.With(s.obs.Middleware("staking", "cooldown_start")).Post("/staking/cooldown/start", s.handleStartCoolDown)
				st.With(s.obs.Middleware("staking", "cooldown_stop")).Post("/staking/cooldown/stop", s.handleStopCoolDown)
				st.With(s.obs.Middleware("staking", "redeem")).Post("/staking/redeem", s.handleRedeem)
				st.With(s.obs.Middleware("staking", "transfer")).Post("/staking/transfer", s.handleTransfer)
				st.With(s.obs.Middleware("staking", "delegate")).Post("/staking/delegate", s.handleDelegate)
			})

			protected.Group(func(tr chi.Router) {
				tr.Use(s.limits.Middleware("treasury"))
				tr.With(s.obs.Middleware("treasury", "trade")).Post("/treasury/trades", s.handleTrade)
				tr.With(s.obs.Middleware("treasury", "simulate")).Post("/treasury/trades/simulate", s.handleSimulate)
				tr.With(s.obs.Middleware("treasury", "cancel_order")).Post("/treasury/orders/cancel", s.handleCancelOrder)
				tr.With(s.obs.Middleware("treasury", "invest")).Post("/treasury/invest", s.handleInvest)
				tr.With(s.obs.Middleware("treasury", "reinvest")).Post("/treasury/reinvest", s.handleReinvest)
			})

			protected.Group(func(admin chi.Router) {
				admin.Use(s.limits.Middleware("admin"))
				admin.With(s.obs.Middleware("admin", "staking_cooldown")).Post("/admin/staking/cooldown", s.handleSetCoolDown)
				admin.With(s.obs.Middleware("admin", "staking_swap_fee")).Post("/admin/staking/swap-fee", s.handleSetSwapFee)
				admin.With(s.obs.Middleware("admin", "staking_shortfall")).Post("/admin/staking/shortfall", s.handleShortfall)
				admin.With(s.obs.Middleware("admin", "treasury_manager")).Post("/admin/treasury/manager", s.handleSetManager)
				admin.With(s.obs.Middleware("admin", "treasury_oracle")).Post("/admin/treasury/oracle", s.handleSetOracle)
				admin.With(s.obs.Middleware("admin", "treasury_slippage")).Post("/admin/treasury/slippage", s.handleSetSlippage)
				admin.With(s.obs.Middleware("admin", "audit")).Get("/admin/audit/events", s.handleAuditEvents)
			})
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// execute runs fn for the authenticated caller as one committed unit and
// writes the response. A nil result means the unit was committed.
func (s *Server) execute(w http.ResponseWriter, r *http.Request, fn func(caller common.Address) (interface{}, error)) error {
	caller, ok := middleware.CallerFromContext(r.Context())
	if !ok {
		s.writeError(w, errMissingCaller)
		return errMissingCaller
	}
	var out interface{}
	err := s.node.Execute(func() error {
		var err error
		out, err = fn(caller)
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return err
	}
	s.writeJSON(w, http.StatusOK, out)
	return nil
}

// view runs fn against current state without committing.
func (s *Server) view(w http.ResponseWriter, fn func() (interface{}, error)) {
	var out interface{}
	err := s.node.View(func() error {
		var err error
		out, err = fn()
		return err
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func decode(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errInvalidPayload{err}
	}
	return nil
}

type errInvalidPayload struct{ err error }

func (e errInvalidPayload) Error() string { return "invalid payload: " + e.err.Error() }
func (e errInvalidPayload) Unwrap() error { return e.err }

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	var payload errInvalidPayload
	if errors.As(err, &payload) {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.Any("error", err))
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", slog.Any("error", err))
	}
}

func (s *Server) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "audit store disabled"})
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.audit.List(r.Context(), audit.Query{Type: r.URL.Query().Get("type"), Limit: limit})
	if err != nil {
		s.logger.Error("list audit events", slog.Any("error", err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list events"})
		return
	}
	type entry struct {
		audit.Record
		Attributes map[string]string `json:"attributes"`
	}
	out := make([]entry, 0, len(records))
	for _, rec := range records {
		fields, err := rec.Fields()
		if err != nil {
			fields = map[string]string{}
		}
		out = append(out, entry{Record: rec, Attributes: fields})
	}
	s.writeJSON(w, http.StatusOK, out)
}
