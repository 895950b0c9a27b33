package main

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"github.com/soaringjerry/qforms/internal/api"
	"github.com/soaringjerry/qforms/internal/config"
	"github.com/soaringjerry/qforms/internal/middleware"
	"github.com/soaringjerry/qforms/internal/services"
	"github.com/soaringjerry/qforms/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	commit := utils.SafeEnv("QFORMS_COMMIT", "dev")
	buildTime := utils.SafeEnv("QFORMS_BUILD_TIME", "")
	logCloser := utils.InitLogger(cfg.Logging, slog.String("commit", commit))

	if err := run(cfg, commit, buildTime); err != nil {
		slog.Error("server stopped", slog.String("error", err.Error()))
		_ = logCloser.Close()
		os.Exit(1)
	}
	_ = logCloser.Close()
}

func run(cfg *config.Config, commit, buildTime string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, st.Close())
	}()

	tokens, err := middleware.NewTokenIssuer(cfg.Auth.JWTSecret)
	if err != nil {
		return err
	}
	auth := services.NewAuthService(st, tokens.Sign, cfg.Auth.TokenTTL)
	questionnaires := services.NewQuestionnaireService(st, nil)

	if email := cfg.Auth.BootstrapAdminEmail; email != "" {
		password, created, err := auth.BootstrapAdmin(ctx, email, rand.Reader)
		if err != nil {
			return err
		}
		if created {
			slog.Warn("bootstrap admin password, shown once", slog.String("email", email), slog.String("password", password))
		}
	}
	if cfg.Seed.QuestionnaireFile != "" {
		if _, err := seedQuestionnaire(ctx, cfg.Seed.QuestionnaireFile, cfg.Seed.OwnerEmail, st, auth, questionnaires, rand.Reader); err != nil {
			return err
		}
	}

	mux := http.NewServeMux()
	api.NewRouter(questionnaires, auth, tokens).Register(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		locale := middleware.LocaleFromContext(r.Context())
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "qforms API",
			"locale":     locale,
			"msg":        utils.T(locale, "health.ok"),
			"store":      cfg.Store.Driver,
			"commit":     commit,
			"build_time": buildTime,
		})
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// Frontend serving: static files when configured, else a dev proxy.
	if staticDir := cfg.Server.StaticDir; staticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(staticDir)))
	} else if devURL := utils.SafeEnv("QFORMS_DEV_FRONTEND_URL", ""); devURL != "" {
		if u, err := url.Parse(devURL); err == nil {
			rp := httputil.NewSingleHostReverseProxy(u)
			rp.ModifyResponse = func(res *http.Response) error {
				res.Header.Set("Cache-Control", "no-store, max-age=0")
				return nil
			}
			mux.Handle("/", rp)
		} else {
			slog.Warn("invalid dev frontend url", slog.String("url", devURL), slog.String("error", err.Error()))
		}
	}

	handler := middleware.SecureHeaders(
		middleware.NoStore(
			middleware.CORS(cfg.Server.AllowOrigins)(
				middleware.LocaleMiddleware(
					middleware.RequestLogger(mux)))))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("qforms server listening", slog.String("addr", cfg.Server.Addr), slog.String("store", cfg.Store.Driver))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
