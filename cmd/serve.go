package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"auto_wordpress_post_publisher/publisher"
	"auto_wordpress_post_publisher/server"
	"auto_wordpress_post_publisher/store"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server_addr)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	st, err := store.Open(cfg.DBPath, store.NewSealer(cfg.SecretKey), logger.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()
	if cfg.SecretKey == "" {
		logger.Warn("secret_key not set; site passwords are stored in clear")
	}

	auth, err := server.NewAuthenticator(cfg.JWTSecret)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Options{
		Store:     st,
		Publisher: publisher.New(nil, logger.Named("publisher")),
		Auth:      auth,
		LLM:       cfg.LLMSettings(""),
		Logger:    logger.Named("server"),
	})
	if err != nil {
		return err
	}

	listen := cfg.ServerAddr
	if serveAddr != "" {
		listen = serveAddr
	}
	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       time.Minute,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting web server", zap.String("addr", listen))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
