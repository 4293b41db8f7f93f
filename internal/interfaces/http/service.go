package httpinterface

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/shivarthu/shivarthu-signer/internal/core/application"
	"github.com/shivarthu/shivarthu-signer/internal/interfaces"
	log "github.com/sirupsen/logrus"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second

	defaultAddress = "127.0.0.1"
)

type ServiceOpts struct {
	// Address defaults to the loopback interface.
	Address            string
	Port               int
	CORSAllowedOrigins []string
	Transfer           TransferDefaults
	// Auth verifies the bearer token required by every /v1 route.
	Auth TokenVerifier

	AccountService  application.AccountService
	UnlockerService application.UnlockerService
	SignerService   application.SignerService
	// PubSubService is optional, webhook routes reply 503 without it.
	PubSubService application.PubSubService
}

func (o ServiceOpts) validate() error {
	if o.Port <= 0 || o.Port > 65535 {
		return fmt.Errorf("invalid listening port %d", o.Port)
	}
	if o.Auth == nil {
		return fmt.Errorf("missing token verifier")
	}
	if o.AccountService == nil {
		return fmt.Errorf("missing account service")
	}
	if o.UnlockerService == nil {
		return fmt.Errorf("missing unlocker service")
	}
	if o.SignerService == nil {
		return fmt.Errorf("missing signer service")
	}
	return nil
}

type service struct {
	opts   ServiceOpts
	server *http.Server
}

// NewService returns the HTTP+WebSocket interface of the signer.
func NewService(opts ServiceOpts) (interfaces.Service, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	address := opts.Address
	if len(address) <= 0 {
		address = defaultAddress
	}

	return &service{
		opts: opts,
		server: &http.Server{
			Addr:              net.JoinHostPort(address, strconv.Itoa(opts.Port)),
			Handler:           NewRouter(opts),
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

func (s *service) Start() error {
	go func() {
		if err := s.server.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http interface stopped unexpectedly")
		}
	}()
	log.Infof("http interface listening on %s", s.server.Addr)
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully stop http interface")
	}
	log.Debug("stopped http interface")
}

// NewRouter returns the handler serving the /v1 API and the prometheus
// metrics. Browser requests from origins not in opts.CORSAllowedOrigins are
// refused, and /v1 routes require a bearer token and json bodies.
func NewRouter(opts ServiceOpts) http.Handler {
	h := &handler{
		accountSvc:  opts.AccountService,
		unlockerSvc: opts.UnlockerService,
		signerSvc:   opts.SignerService,
		pubsubSvc:   opts.PubSubService,
		transfer:    opts.Transfer,
		upgrader: websocket.Upgrader{
			CheckOrigin: checkOrigin(opts.CORSAllowedOrigins),
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logRequests)
	r.Use(rejectForeignOrigins(opts.CORSAllowedOrigins))
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}).Handler)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(requireToken(opts.Auth))
		r.Use(requireJSON)

		r.Get("/seed", h.genSeed)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", h.listAccounts)
			r.Post("/", h.addAccount)
			r.Post("/import", h.importAccounts)
			r.Get("/export", h.exportAccounts)
			r.Get("/{id}", h.getAccount)
			r.Get("/{id}/balance", h.getBalance)
			r.Delete("/{id}", h.removeAccount)
		})

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.sessionStatus)
			r.Post("/unlock", h.unlock)
			r.Post("/lock", h.lock)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.listTransactions)
			r.Post("/transfer", h.submitTransfer)
			r.Post("/remark", h.submitRemark)
			r.Post("/call", h.submitCall)
			r.Get("/{id}", h.getTransaction)
			r.Delete("/{id}", h.forgetTransaction)
			r.Post("/{id}/discard", h.discardTransaction)
			r.Get("/{id}/ws", h.streamTransaction)
		})

		r.Route("/webhooks", func(r chi.Router) {
			r.Get("/", h.listWebhooks)
			r.Post("/", h.addWebhook)
			r.Delete("/{id}", h.removeWebhook)
		})
	})

	return r
}

// checkOrigin accepts websocket upgrades from the CORS allowed origins, or
// from requests without an Origin header, ie. not coming from a browser.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	origins := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		origins[o] = struct{}{}
	}
	_, allowAll := origins["*"]

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if len(origin) <= 0 || allowAll {
			return true
		}
		_, ok := origins[origin]
		return ok
	}
}
