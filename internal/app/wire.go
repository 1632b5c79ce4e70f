package app

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stakehouse/platform/internal/auth"
	"github.com/stakehouse/platform/internal/gateway"
	"github.com/stakehouse/platform/internal/guard"
	"github.com/stakehouse/platform/internal/handler"
	adminhandler "github.com/stakehouse/platform/internal/handler/admin"
	"github.com/stakehouse/platform/internal/infra"
	"github.com/stakehouse/platform/internal/ledger"
	"github.com/stakehouse/platform/internal/projection"
	"github.com/stakehouse/platform/internal/random"
	"github.com/stakehouse/platform/internal/registry"
	"github.com/stakehouse/platform/internal/repository"
	"github.com/stakehouse/platform/internal/service"
)

// App wires every component of the settlement platform. Both servers (player
// API and game gateway) share the same App so they see one ledger, one
// breaker and one outbox.
type App struct {
	Config *infra.Config
	Logger *slog.Logger
	Pool   *pgxpool.Pool // nil when running on the in-memory store

	Runner repository.TxRunner
	Outbox repository.OutboxRepository

	JWT  *auth.JWTManager
	Keys *auth.GameKeyManager

	Breaker   *guard.CircuitBreaker
	Flash     *guard.FlashAbuseGuard
	Guardians *guard.GuardianSet

	Ledger   *service.LedgerService
	Registry *service.RegistryService
	Random   *service.RandomService
	Guard    *service.GuardService

	Hub         *infra.WSHub
	Producer    *infra.KafkaProducer
	Poller      *infra.OutboxPoller
	Projections projection.Store

	// Source is the commitment log the beacon reads from.
	Source random.BlockSource
}

// New builds the application graph from configuration. With USE_MEMORY_STORE
// set, everything runs on the in-memory store and no Postgres connection is
// made (local development and smoke tests).
func New(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	var (
		players     repository.PlayerRepository
		games       repository.GameRepository
		sessions    repository.SessionRepository
		entries     repository.EntryRepository
		treasury    repository.TreasuryRepository
		randomness  repository.RandomnessRepository
		commitments repository.CommitmentRepository
	)

	if cfg.UseMemoryStore {
		store := repository.NewMemoryStore()
		a.Runner = store
		players = store.Players()
		games = store.Games()
		sessions = store.Sessions()
		entries = store.Entries()
		treasury = store.Treasury()
		randomness = store.Randomness()
		commitments = store.Commitments()
		a.Outbox = store.Outbox()
		logger.Warn("running on the in-memory store; nothing is persisted")
	} else {
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.Pool = pool
		a.Runner = repository.NewPgxRunner(pool)
		players = repository.NewPlayerRepository()
		games = repository.NewGameRepository()
		sessions = repository.NewSessionRepository()
		entries = repository.NewEntryRepository()
		treasury = repository.NewTreasuryRepository()
		randomness = repository.NewRandomnessRepository()
		commitments = repository.NewCommitmentRepository()
		a.Outbox = repository.NewOutboxRepository()
	}

	// Auth
	a.JWT = auth.NewJWTManager(cfg.JWTSecret,
		parseDuration(cfg.JWTPlayerExpiry, 24*time.Hour, logger),
		parseDuration(cfg.JWTGuardianExpiry, 8*time.Hour, logger))
	a.Keys = auth.NewGameKeyManager(cfg.GameKeySecret, 0)

	// Guards
	a.Breaker = guard.NewCircuitBreaker(parseDuration(cfg.BreakerResetTimelock, 12*time.Hour, logger))
	a.Flash = guard.NewFlashAbuseGuard(
		parseDuration(cfg.FlashGuardWindow, time.Minute, logger),
		cfg.FlashGameCeiling, cfg.FlashPlayerCeiling)
	a.Guardians = guard.NewGuardianSet(splitGuardians(cfg.Guardians),
		parseDuration(cfg.GuardianHandover, 72*time.Hour, logger))

	// Randomness
	if cfg.ChainRPCURL != "" {
		a.Source = random.NewChainClient(cfg.ChainRPCURL, cfg.ChainArchiveRPCURL, cfg.ChainNativeWindow, logger)
	} else {
		logger.Warn("no CHAIN_RPC_URL configured; using the simulated commitment log")
		a.Source = random.NewSimulatedLog(cfg.ChainNativeWindow)
	}
	beacon := random.NewBeacon(a.Source, randomness, a.Outbox, cfg.CommitDelay)
	choices := random.NewChoiceBook(commitments, a.Outbox, parseDuration(cfg.RevealWindow, 10*time.Minute, logger))

	// Core engines
	engine := ledger.NewEngine(players, games, sessions, entries, treasury, randomness, a.Outbox, a.Breaker, a.Flash)
	reg := registry.NewRegistry(games, a.Outbox, parseDuration(cfg.RemovalGracePeriod, registry.DefaultGracePeriod, logger))

	// Services
	a.Ledger = service.NewLedgerService(a.Runner, engine, sessions, entries, players, treasury, logger)
	a.Registry = service.NewRegistryService(a.Runner, reg, logger)
	a.Random = service.NewRandomService(a.Runner, beacon, choices, logger)
	a.Guard = service.NewGuardService(a.Runner, a.Outbox, a.Breaker, a.Flash, a.Guardians, logger)

	// Read side and event fan-out
	if store, err := projection.NewRedisStore(cfg.RedisURL); err == nil {
		a.Projections = store
	} else {
		logger.Warn("redis unavailable, projections run in memory", "error", err)
		a.Projections = projection.NewInMemoryStore()
	}
	a.Hub = infra.NewWSHub(logger)
	a.Producer = infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaEnabled, logger)
	a.Poller = infra.NewOutboxPoller(a.Runner, a.Outbox, a.Producer, logger,
		a.Hub, projection.NewUpdater(a.Projections, logger))

	return a, nil
}

// APIRouter assembles the player and guardian facing chi.Router.
func (a *App) APIRouter() chi.Router {
	walletHandler := handler.NewWalletHandler(a.Ledger, a.Projections)
	sessionHandler := handler.NewSessionHandler(a.Ledger)

	gamesAdmin := adminhandler.NewGamesHandler(a.Registry, a.Keys)
	guardAdmin := adminhandler.NewGuardHandler(a.Guard)
	treasuryAdmin := adminhandler.NewTreasuryHandler(a.Ledger, a.Random)
	playersAdmin := adminhandler.NewPlayersHandler(a.Ledger, a.JWT)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(a.Logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(a.Logger))
	r.Use(handler.CORS(a.Config.CORSAllowedOrigins))

	// Health and the event stream skip the JSON content type.
	r.Get("/health", handler.HealthHandler(a.Pool))
	r.Get("/ws/events", a.Hub.ServeWS(infra.EventsRoom))

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)
		r.Use(auth.AuthenticatePlayer(a.JWT))

		r.Route("/wallet", func(r chi.Router) {
			r.Get("/balance", walletHandler.GetBalance)
			r.Get("/entries", walletHandler.GetEntries)
			r.Post("/deposits", walletHandler.Deposit)
			r.Post("/withdrawals", walletHandler.Withdraw)
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/{sessionID}", sessionHandler.GetSession)
			r.Post("/{sessionID}/refund", sessionHandler.RefundSession)
		})

		// Batch form of the refund path above; eligibility is enforced
		// per session inside the ledger, not by the route.
		r.Post("/refunds/batch", sessionHandler.BatchRefund)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(handler.JSONContentType)
		r.Use(auth.AuthenticateGuardian(a.JWT))

		r.Route("/players", func(r chi.Router) {
			r.Post("/", playersAdmin.CreatePlayer)
			r.Get("/{playerID}", playersAdmin.GetPlayer)
		})

		r.Route("/games", func(r chi.Router) {
			r.Get("/", gamesAdmin.ListGames)
			r.Post("/", gamesAdmin.RegisterGame)
			r.Get("/{gameID}", gamesAdmin.GetGame)
			r.Post("/{gameID}/removal", gamesAdmin.RequestRemoval)
			r.Delete("/{gameID}/removal", gamesAdmin.CancelRemoval)
			r.Post("/{gameID}/removal/finalize", gamesAdmin.FinalizeRemoval)
			r.Post("/{gameID}/pause", gamesAdmin.PauseGame)
			r.Post("/{gameID}/unpause", gamesAdmin.UnpauseGame)
			r.Patch("/{gameID}/burn-policy", gamesAdmin.SetBurnPolicy)
			r.Post("/{gameID}/token", gamesAdmin.IssueGameToken)
			r.Put("/{gameID}/ceiling", guardAdmin.SetGameCeiling)
			r.Get("/{gameID}/volume", guardAdmin.GetWindowVolume)
		})

		r.Route("/breaker", func(r chi.Router) {
			r.Get("/", guardAdmin.BreakerStatus)
			r.Post("/trip", guardAdmin.TripBreaker)
			r.Post("/reset", guardAdmin.RequestBreakerReset)
			r.Post("/veto", guardAdmin.VetoBreakerReset)
		})

		r.Route("/guardians", func(r chi.Router) {
			r.Get("/", guardAdmin.ListGuardians)
			r.Post("/proposals", guardAdmin.ProposeGuardian)
			r.Delete("/proposals/{targetID}", guardAdmin.CancelGuardianProposal)
		})

		r.Get("/treasury", treasuryAdmin.GetReport)
		r.Get("/randomness", treasuryAdmin.GetRandomnessRequest)
	})

	return r
}

// GatewayRouter assembles the game-module facing chi.Router.
func (a *App) GatewayRouter() chi.Router {
	return gateway.NewRouter(a.Keys, a.Ledger, a.Random, a.Logger)
}

// Close releases held connections.
func (a *App) Close() {
	if a.Producer != nil {
		a.Producer.Close()
	}
	if closer, ok := a.Projections.(*projection.RedisStore); ok {
		closer.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}

func parseDuration(value string, fallback time.Duration, logger *slog.Logger) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		logger.Warn("invalid duration, using default", "value", value, "default", fallback)
		return fallback
	}
	return d
}

func splitGuardians(csv string) []string {
	var out []string
	for _, part := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
