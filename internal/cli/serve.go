package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/diffbot/internal/api"
	"github.com/ashureev/diffbot/internal/bot"
	"github.com/ashureev/diffbot/internal/chat"
	"github.com/ashureev/diffbot/internal/config"
	"github.com/ashureev/diffbot/internal/dispatch"
	"github.com/ashureev/diffbot/internal/identity"
	"github.com/ashureev/diffbot/internal/middleware"
	"github.com/ashureev/diffbot/internal/render"
	"github.com/ashureev/diffbot/internal/session"
	"github.com/ashureev/diffbot/internal/store"
	"github.com/ashureev/diffbot/internal/telegram"
	"github.com/ashureev/diffbot/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot",
		Long: `Run the bot on the configured transport.

TRANSPORT=telegram long-polls the Telegram Bot API.
TRANSPORT=http serves the REST API, the /ws/chat WebSocket and the chat page.

Example:
  diffbot serve
  diffbot serve --settings /etc/diffbot/settings.yml --log-level debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), rootOpts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg, err := config.Load(opts.SettingsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	if opts.LogLevel == "" {
		if level, err := parseLevel(cfg.LogLevel); err == nil {
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		}
	}
	logger := slog.Default()
	logger.Info("Starting diffbot", "transport", cfg.Transport, "locale", cfg.Locale, "db_path", cfg.DBPath)

	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to initialize database", err)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			logger.Error("Failed to close repository", "error", closeErr)
		}
	}()
	logger.Info("Database connected")

	sessions := session.NewRegistry()
	renderer := render.New(cfg.Locale)
	orch, err := bot.New(repo, sessions, bot.WithLogger(logger), bot.WithRenderer(renderer))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to initialize bot", err)
	}
	d, err := dispatch.New(orch, dispatch.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitFailure, "failed to initialize dispatcher", err)
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.StartExpiryWorker(ctx, sessions, cfg.SessionTTL, cfg.SweepInterval)

	g, gctx := errgroup.WithContext(ctx)
	switch cfg.Transport {
	case config.TransportTelegram:
		client, err := telegram.Connect(cfg.BotToken, cfg.Debug)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to connect to telegram", err)
		}
		logger.Info("Authorized on Telegram", "username", client.Self.UserName)

		tg, err := telegram.New(client, d, renderer,
			telegram.WithLogger(logger),
			telegram.WithPollTimeout(cfg.PollTimeout))
		if err != nil {
			return WrapExitError(ExitFailure, "failed to initialize telegram transport", err)
		}
		g.Go(func() error {
			return tg.Run(gctx)
		})

	case config.TransportHTTP:
		conns := chat.NewConnManager()
		srv := &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           newRouter(cfg, repo, d, conns, logger),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		g.Go(func() error {
			logger.Info("Server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Shutting down gracefully...")
			conns.CloseAll()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server forced to shutdown: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return WrapExitError(ExitFailure, "bot stopped", err)
	}
	logger.Info("Stopped", "pending_events", d.Pending())
	return nil
}

// newRouter builds the HTTP transport: REST API, browser chat and the
// embedded chat page.
func newRouter(cfg *config.Config, repo store.Repository, d *dispatch.Dispatcher, conns *chat.ConnManager, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	api.NewHandler(repo, d, cfg.BotToken, api.WithLogger(logger)).RegisterRoutes(r)

	ws := chat.NewWebSocketHandler(d, conns, originHosts(cfg.AllowedOrigins), logger)
	r.With(identity.Middleware(!cfg.Debug)).Get("/ws/chat", ws.ServeHTTP)

	r.Handle("/*", web.Handler())
	return r
}

// originHosts converts configured origins ("https://app.example") into the
// host patterns the WebSocket origin check expects.
func originHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, o := range origins {
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			hosts = append(hosts, u.Host)
			continue
		}
		hosts = append(hosts, o)
	}
	return hosts
}
