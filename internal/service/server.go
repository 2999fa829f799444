package service

import (
	"net/http"
	"time"

	"itemstore/internal/app"
	"itemstore/internal/pkg/logger"
	"itemstore/internal/pkg/metrics"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Service encapsulates the HTTP server configuration, including the application's business logic,
// HTTP handlers, the server's run address, metrics and a logger for event and error logging.
type Service struct {
	handlers       *handlers
	app            *app.App
	runAddress     string
	allowedOrigins []string
	metrics        *metrics.Metrics
	log            *logger.Logger
}

// NewService creates and initializes a new Service instance.
// allowedOrigins lists the origins allowed by CORS; "*" allows any.
func NewService(app *app.App, runAddress string, allowedOrigins []string, m *metrics.Metrics, l *logger.Logger) *Service {
	handlers := newHandlers(app, l)
	return &Service{
		handlers:       handlers,
		app:            app,
		runAddress:     runAddress,
		allowedOrigins: allowedOrigins,
		metrics:        m,
		log:            l,
	}
}

// Server returns an http.Server bound to the run address and serving NewRouter.
func (service *Service) Server() *http.Server {
	const (
		readHeaderTimeout = 5 * time.Second
		readTimeout       = 15 * time.Second
	)
	return &http.Server{
		Addr:              service.runAddress,
		Handler:           service.NewRouter(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
	}
}

// NewRouter sets up and returns a new chi.Router instance with the necessary middleware and routes.
// Item routes are wrapped by withItems, which loads the collection and checks tokens on writes.
func (service *Service) NewRouter() chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.Recoverer)
	router.Use(service.log.WithLogging())
	router.Use(service.metrics.WithMetrics())
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: service.allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/healthz", service.handlers.healthHandler)
	router.Method(http.MethodGet, "/metrics", service.metrics.Handler())

	router.Route("/users", func(r chi.Router) {
		r.Post("/signup", service.handlers.signupHandler)
		r.Post("/login", service.handlers.loginHandler)
	})

	router.Route("/items", func(r chi.Router) {
		r.Get("/", service.handlers.withItems(service.handlers.listItemsHandler))
		r.Post("/", service.handlers.withItems(service.handlers.createItemHandler))
		r.Get("/{id}", service.handlers.withItems(service.handlers.getItemHandler))
		r.Put("/{id}", service.handlers.withItems(service.handlers.updateItemHandler))
		r.Delete("/{id}", service.handlers.withItems(service.handlers.deleteItemHandler))
	})
	return router
}
