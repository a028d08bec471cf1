package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"task-gravity-backend/internal/analytics"
	"task-gravity-backend/internal/auth"
	"task-gravity-backend/internal/config"
	"task-gravity-backend/internal/db"
	"task-gravity-backend/internal/store"
	"task-gravity-backend/internal/tasks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("❌ Invalid config:", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatal("❌ JWT_SECRET is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		taskStore tasks.Store
		database  *sql.DB
	)
	switch cfg.Store {
	case config.StoreMemory:
		taskStore = store.NewMemory()
		log.Println("⚠️  Using in-memory store, data is lost on restart")
	default:
		var err error
		database, err = db.Connect(ctx, cfg.ConnString())
		if err != nil {
			log.Fatal("❌ Failed to connect DB:", err)
		}
		defer database.Close()
		log.Println("✅ Connected to PostgreSQL!")

		if err := db.EnsureSchema(ctx, database); err != nil {
			log.Fatal("❌ Failed to apply schema:", err)
		}
		taskStore = store.NewPostgres(database)
	}

	svc := tasks.NewService(taskStore, nil)
	rec := analytics.New(database)

	go svc.Sweeper().Run(ctx, cfg.DecayInterval, cfg.DecayThresholdDays)

	mux := routes(svc, rec, auth.New([]byte(cfg.JWTSecret)), cfg.DecayThresholdDays)

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Platform", "X-App-Version", "X-Session-Id", "Idempotency-Key"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           c.Handler(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		log.Println("🛑 Shutting down API server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[WARN] shutdown: %v", err)
		}
	}()

	log.Printf("🚀 API server is running on %s", cfg.HTTPAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
	log.Println("👋 API server stopped")
}

func routes(svc *tasks.Service, rec *analytics.Recorder, mw auth.Middleware, decayDays int) *http.ServeMux {
	mux := http.NewServeMux()

	// Health endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	// ----- TASKS API -----
	mux.HandleFunc("GET /tasks", mw.Wrap(tasks.ListTasksHandler(svc)))
	mux.HandleFunc("POST /tasks", mw.Wrap(tasks.CreateTaskHandler(svc, rec)))
	mux.HandleFunc("GET /tasks/tree", mw.Wrap(tasks.TaskTreeHandler(svc)))
	mux.HandleFunc("GET /tasks/roots", mw.Wrap(tasks.RootTasksHandler(svc)))
	mux.HandleFunc("GET /tasks/gravity", mw.Wrap(tasks.GravityTasksHandler(svc)))
	mux.HandleFunc("GET /tasks/stats", mw.Wrap(tasks.StatsHandler(svc)))
	mux.HandleFunc("POST /tasks/decay", mw.Wrap(tasks.DecayHandler(svc, rec, decayDays)))

	mux.HandleFunc("GET /tasks/{id}", mw.Wrap(tasks.GetTaskHandler(svc)))
	mux.HandleFunc("PATCH /tasks/{id}", mw.Wrap(tasks.UpdateTaskHandler(svc, rec)))
	mux.HandleFunc("DELETE /tasks/{id}", mw.Wrap(tasks.DeleteTaskHandler(svc, rec)))
	mux.HandleFunc("PUT /tasks/{id}/coordinates", mw.Wrap(tasks.UpdateCoordinatesHandler(svc, rec)))
	mux.HandleFunc("GET /tasks/{id}/ancestors", mw.Wrap(tasks.AncestorsHandler(svc)))
	mux.HandleFunc("GET /tasks/{id}/descendants", mw.Wrap(tasks.DescendantsHandler(svc)))
	mux.HandleFunc("POST /tasks/{id}/focus/start", mw.Wrap(tasks.StartFocusHandler(svc, rec)))
	mux.HandleFunc("POST /tasks/{id}/focus/stop", mw.Wrap(tasks.StopFocusHandler(svc, rec)))

	// ----- ANALYTICS -----
	mux.HandleFunc("POST /events", mw.Wrap(analytics.ClientEventHandler(rec)))

	return mux
}
