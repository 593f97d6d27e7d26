package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"
	"go.uber.org/zap"

	"auto_wordpress_post_publisher/generator"
	"auto_wordpress_post_publisher/publisher"
	"auto_wordpress_post_publisher/store"
)

const (
	requestTimeout = 60 * time.Second
	sessionMaxIdle = 2 * time.Hour
)

// Options wire a Server. Store, Publisher and Auth are required.
type Options struct {
	Store     *store.Store
	Publisher *publisher.Publisher
	Auth      *Authenticator
	// LLM is the server-wide completion setup; a user's own API key
	// replaces LLM.APIKey for that user's wizards.
	LLM generator.LLMSettings
	// NewClient defaults to generator.NewClient.
	NewClient func(generator.LLMSettings) (generator.CompletionClient, error)
	Logger    *zap.Logger
}

type Server struct {
	store     *store.Store
	wp        *publisher.Publisher
	auth      *Authenticator
	llm       generator.LLMSettings
	newClient func(generator.LLMSettings) (generator.CompletionClient, error)
	sessions  *sessionStore
	logger    *zap.Logger
}

func New(opts Options) (*Server, error) {
	if opts.Store == nil || opts.Publisher == nil || opts.Auth == nil {
		return nil, errors.New("server: store, publisher and authenticator are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newClient := opts.NewClient
	if newClient == nil {
		newClient = func(s generator.LLMSettings) (generator.CompletionClient, error) {
			return generator.NewClient(s, nil)
		}
	}
	return &Server{
		store:     opts.Store,
		wp:        opts.Publisher,
		auth:      opts.Auth,
		llm:       opts.LLM,
		newClient: newClient,
		sessions:  newSessionStore(sessionMaxIdle),
		logger:    logger,
	}, nil
}

// Routes returns the HTTP handler with recovery and access logging.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.auth.Middleware)

	api.HandleFunc("/settings", s.handleGetSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.handlePutSettings).Methods(http.MethodPut)

	api.HandleFunc("/sites", s.handleListSites).Methods(http.MethodGet)
	api.HandleFunc("/sites", s.handleAddSite).Methods(http.MethodPost)
	api.HandleFunc("/sites/{id}", s.handleGetSite).Methods(http.MethodGet)
	api.HandleFunc("/sites/{id}", s.handleDeleteSite).Methods(http.MethodDelete)
	api.HandleFunc("/sites/{id}/refresh", s.handleRefreshSite).Methods(http.MethodPost)
	api.HandleFunc("/sites/{id}/posts", s.handleListPosts).Methods(http.MethodGet)
	api.HandleFunc("/sites/{id}/wizard", s.handleOpenWizard).Methods(http.MethodPost)

	api.HandleFunc("/wizard/{sid}", s.handleGetWizard).Methods(http.MethodGet)
	api.HandleFunc("/wizard/{sid}", s.handleCloseWizard).Methods(http.MethodDelete)
	api.HandleFunc("/wizard/{sid}/completions", s.handleCompletion).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{sid}/next", s.handleNext).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{sid}/back", s.handleBack).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{sid}/publish", s.handlePublish).Methods(http.MethodPost)
	api.HandleFunc("/wizard/{sid}/media", s.handleMedia).Methods(http.MethodPost)

	recovery := negroni.NewRecovery()
	recovery.Logger = zap.NewStdLog(s.logger.Named("recovery"))
	recovery.PrintStack = false

	n := negroni.New()
	n.Use(recovery)
	n.Use(negroni.HandlerFunc(s.accessLog))
	n.UseHandler(r)
	return n
}

func (s *Server) accessLog(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	status := http.StatusOK
	if rw, ok := w.(negroni.ResponseWriter); ok {
		status = rw.Status()
	}
	s.logger.Info("http request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Duration("elapsed", time.Since(start)))
}

// --- Helpers ---

type errorResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResp{Error: msg})
}

// decodeBody decodes a JSON body into v; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), requestTimeout)
}
