package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mattkendal/kudos/internal/backup"
	"github.com/mattkendal/kudos/internal/badge"
	"github.com/mattkendal/kudos/internal/exchange"
	"github.com/mattkendal/kudos/internal/habit"
	"github.com/mattkendal/kudos/internal/handler"
	"github.com/mattkendal/kudos/internal/middleware"
	"github.com/mattkendal/kudos/internal/points"
	"github.com/mattkendal/kudos/internal/store"
	ws "github.com/mattkendal/kudos/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	childH        *handler.ChildHandler
	taskH         *handler.TaskHandler
	ledgerH       *handler.LedgerHandler
	rewardH       *handler.RewardHandler
	exchangeH     *handler.ExchangeHandler
	badgeH        *handler.BadgeHandler
	backupH       *handler.BackupHandler
	childStore    *store.ChildStore
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	logger        *slog.Logger
}

func New(db *sql.DB, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	childStore := store.NewChildStore(db)
	taskStore := store.NewTaskStore(db)
	ledgerStore := store.NewLedgerStore(db)
	badgeStore := store.NewBadgeStore(db)
	rewardStore := store.NewRewardStore(db)
	exchangeStore := store.NewExchangeStore(db)
	backupStore := store.NewBackupStore(db)

	ledger := points.NewLedger(childStore, ledgerStore, logger.With("component", "points"))
	recorder := badge.NewRecorder(childStore, taskStore, ledgerStore, badgeStore)
	habitSvc := habit.NewService(taskStore, childStore, ledger, recorder, logger.With("component", "habit"))
	coordinator := exchange.NewCoordinator(exchangeStore, rewardStore, ledger, recorder, logger.With("component", "exchange"))

	backupMgr := backup.NewManager(backupCfg, db, backupStore, logger.With("component", "backup"), func(s backup.Status) {
		hub.Broadcast(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	return &Server{
		db:            db,
		hub:           hub,
		childH:        handler.NewChildHandler(childStore, hub, logger.With("component", "child")),
		taskH:         handler.NewTaskHandler(taskStore, childStore, habitSvc, hub, logger.With("component", "task")),
		ledgerH:       handler.NewLedgerHandler(ledgerStore, habitSvc, hub, logger.With("component", "ledger")),
		rewardH:       handler.NewRewardHandler(rewardStore, hub, logger.With("component", "reward")),
		exchangeH:     handler.NewExchangeHandler(exchangeStore, coordinator, hub, logger.With("component", "exchange")),
		badgeH:        handler.NewBadgeHandler(badgeStore, logger.With("component", "badge")),
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, logger.With("component", "backup")),
		childStore:    childStore,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		logger:        logger,
	}
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// Hub returns the websocket hub.
func (s *Server) Hub() *ws.Hub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", ws.Handle(s.hub))

	// Child API routes
	mux.HandleFunc("POST /api/children", s.childH.Create)
	mux.HandleFunc("GET /api/children", s.childH.List)
	mux.HandleFunc("GET /api/children/balances", s.childH.Balances)
	mux.HandleFunc("GET /api/children/{id}", s.childH.Get)
	mux.HandleFunc("PUT /api/children/{id}", s.childH.Update)
	mux.HandleFunc("POST /api/children/{id}/pin", s.childH.SetPIN)
	mux.HandleFunc("GET /api/children/{id}/tasks", s.taskH.ListByChild)
	mux.HandleFunc("GET /api/children/{id}/ledger", s.ledgerH.History)
	mux.HandleFunc("GET /api/children/{id}/badges", s.badgeH.ListUnlocked)
	mux.HandleFunc("GET /api/children/{id}/exchanges", s.exchangeH.ListByChild)

	// Task API routes
	mux.HandleFunc("POST /api/tasks", s.taskH.Create)
	mux.HandleFunc("GET /api/tasks/{id}", s.taskH.Get)
	mux.HandleFunc("PUT /api/tasks/{id}", s.taskH.Update)
	mux.HandleFunc("PUT /api/tasks/{id}/active", s.taskH.SetActive)
	mux.HandleFunc("POST /api/tasks/{id}/complete", s.taskH.Complete)
	mux.HandleFunc("DELETE /api/tasks/{id}/complete", s.taskH.Undo)

	// Reward API routes
	mux.HandleFunc("POST /api/rewards", s.rewardH.Create)
	mux.HandleFunc("GET /api/rewards", s.rewardH.List)
	mux.HandleFunc("PUT /api/rewards/{id}", s.rewardH.Update)
	mux.HandleFunc("DELETE /api/rewards/{id}", s.rewardH.Delete)

	// Exchange API routes
	mux.HandleFunc("POST /api/exchanges", s.exchangeH.Request)
	mux.HandleFunc("GET /api/exchanges/pending", s.exchangeH.ListPending)

	// Badge API routes
	mux.HandleFunc("GET /api/badges", s.badgeH.List)

	// Parent-guarded routes. The guard verifies the parent PIN headers on
	// every call so a kiosk device cannot wander into these.
	guard := middleware.RequireParentMode(s.childStore, s.rateLimiter)
	mux.Handle("POST /api/children/{id}/adjust", guard(http.HandlerFunc(s.ledgerH.Adjust)))
	mux.Handle("POST /api/tasks/{id}/confirm", guard(http.HandlerFunc(s.taskH.Confirm)))
	mux.Handle("POST /api/exchanges/{id}/review", guard(http.HandlerFunc(s.exchangeH.Review)))
	mux.Handle("GET /api/backups", guard(http.HandlerFunc(s.backupH.List)))
	mux.Handle("GET /api/backups/status", guard(http.HandlerFunc(s.backupH.Status)))
	mux.Handle("POST /api/backups/run", guard(http.HandlerFunc(s.backupH.RunNow)))
	mux.Handle("GET /api/backups/{id}/download", guard(http.HandlerFunc(s.backupH.Download)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
