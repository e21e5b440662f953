package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/trustgate/internal/config"
	"github.com/dropDatabas3/trustgate/internal/http/server"
	"github.com/dropDatabas3/trustgate/internal/observability/logger"
)

var version = "dev"

func main() {
	var (
		configPath = envOr("CONFIG_PATH", "")
		logLevel   = envOr("LOG_LEVEL", "info")
	)

	root := &cobra.Command{
		Use:          "trustgate",
		Short:        "Request-trust gateway: anti-forgery tokens, rate limiting and origin checks",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", configPath, "path to YAML config (env CONFIG_PATH)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", logLevel, "log level: debug|info|warn|error (env LOG_LEVEL)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Resolve the trust boundary and serve",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, logLevel)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	// config-check runs the exact same fail-fast resolution as serve and
	// prints the result, so deploy pipelines can validate before rollout.
	checkCmd := &cobra.Command{
		Use:   "config-check",
		Short: "Validate configuration and print the resolved trust boundary without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, logLevel)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg)
			if err != nil {
				return err
			}
			defer srv.Close()

			p := srv.Policy()
			fmt.Printf("env:               %s\n", cfg.App.Env)
			fmt.Printf("addr:              %s\n", cfg.Server.Addr)
			fmt.Printf("cookie policy:     samesite=%s secure=%t httponly=%t max_age=%s\n",
				p.SameSite, p.Secure, p.HTTPOnly, p.MaxAge)
			fmt.Printf("allowed origins:   %s\n", strings.Join(srv.AllowedOrigins(), ", "))
			fmt.Printf("token ttl:         %s\n", cfg.TokenTTL())
			fmt.Printf("rate limit:        %d per %s (%s)\n", cfg.Rate.Token.Limit, cfg.RateWindow(), cfg.Cache.Kind)
			fmt.Println("ok")
			return nil
		},
	}

	root.AddCommand(serveCmd, checkCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		log.Fatalf("trustgate: %v", err)
	}
}

func loadConfig(path, logLevel string) (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       logLevel,
		ServiceName: "trustgate",
		Version:     version,
	})
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	defer logger.Sync()
	log := logger.With(logger.Component("main"))

	srv, err := server.New(cfg)
	if err != nil {
		return err
	}
	defer srv.Close()

	// Reference gated route for smoke checks: a mutation behind the token
	// gate that refreshes the session cookie with the resolved policy.
	srv.Protected(func(r chi.Router) {
		r.Post("/v1/echo", func(w http.ResponseWriter, req *http.Request) {
			srv.Sessions().Set(w, "smoke")
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			fmt.Fprintf(w, `{"ok":true,"method":%q}`+"\n", req.Method)
		})
	})

	httpSrv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("listening", logger.Any("addr", cfg.Server.Addr), logger.Any("env", cfg.App.Env))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
