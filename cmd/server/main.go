package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/fsnotify/fsnotify"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"synapse/internal/config"
	"synapse/internal/handlers"
	"synapse/internal/jobs"
	"synapse/internal/logging"
	"synapse/internal/middleware"
	"synapse/internal/modules"
	"synapse/internal/services"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging (JSON in production, text in dev)
	logging.Init()

	log.Println("🚀 Starting Synapse Intelligence Hub...")

	// Load .env file (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️  No .env file found or error loading it: %v", err)
	} else {
		log.Println("✅ .env file loaded successfully")
	}

	// Load configuration
	cfg := config.Load()
	log.Printf("📋 Configuration loaded (Port: %s, Environment: %s)", cfg.Port, cfg.Environment)

	// Core services in dependency order. Everything hangs off the bus.
	bus := services.NewEventBus(cfg.EventHistorySize)
	registry := services.NewModuleRegistry()
	router := services.NewRelevanceRouter(registry)
	store := services.NewContextStore(cfg.InsightCacheTTL)
	invokers := services.NewInvokerTable(nil)
	orchestrator := services.NewOrchestrator(invokers, cfg.ModuleTimeout, cfg.MaxParallelInvocations)
	hub := services.NewIntelligenceHub(bus, registry, router, orchestrator, store, invokers)

	// Optional routing override, hot-reloaded on file changes
	if cfg.RoutingConfigPath != "" {
		if err := router.LoadFile(cfg.RoutingConfigPath); err != nil {
			log.Fatalf("❌ Failed to load routing config %s: %v", cfg.RoutingConfigPath, err)
		}
		log.Printf("✅ Routing table loaded from %s", cfg.RoutingConfigPath)
		go startRoutingFileWatcher(cfg.RoutingConfigPath, router)
	}

	// Initialize Prometheus metrics
	services.InitMetrics(bus, registry, store)
	log.Println("✅ Prometheus metrics initialized")

	// The hub subscribes before anything else publishes, so it sees every
	// event from the first one on.
	if err := hub.Start(); err != nil {
		log.Fatalf("❌ Failed to start intelligence hub: %v", err)
	}

	stream := services.NewEventStream(bus)
	if err := stream.Start(); err != nil {
		log.Fatalf("❌ Failed to start event stream: %v", err)
	}

	simScheduler, err := services.NewSimulationScheduler(bus)
	if err != nil {
		log.Fatalf("❌ Failed to create simulation scheduler: %v", err)
	}
	simScheduler.Start()
	log.Println("✅ Simulation scheduler started")

	// Built-in example modules: a chat assistant, a task analyzer and an
	// insight generator that exercise the full pipeline out of the box.
	var builtins []modules.Module
	if cfg.ExampleModules {
		builtins = []modules.Module{
			modules.NewChatAssistant(bus, hub),
			modules.NewTaskIntelligence(bus, hub),
			modules.NewInsightGenerator(bus, hub),
		}
		for _, m := range builtins {
			if err := m.Start(); err != nil {
				log.Fatalf("❌ Failed to start built-in module %s: %v", m.ID(), err)
			}
		}
		log.Printf("✅ Built-in example modules started (%d)", len(builtins))
	} else {
		log.Println("⚠️  Built-in example modules disabled (EXAMPLE_MODULES=false)")
	}

	// Background jobs
	runner := jobs.NewRunner()
	runner.Register("insight_sweep", jobs.NewInsightSweepJob(store, time.Hour))
	runner.Register("stats_snapshot", jobs.NewStatsSnapshotJob(bus, registry, store, cfg.StatsSnapshotInterval))
	if err := runner.Start(); err != nil {
		log.Printf("⚠️  Failed to start job runner: %v", err)
	} else {
		log.Println("✅ Background job runner started")
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		AppName:      "Synapse Intelligence Hub v1.0",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		BodyLimit:    1 * 1024 * 1024, // event payloads are small JSON documents
	})

	// Middleware
	app.Use(recover.New())
	app.Use(logger.New())

	// Prometheus metrics middleware
	prometheus := fiberprometheus.New("synapse")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)
	log.Println("📊 Prometheus metrics endpoint enabled at /metrics")

	// Load rate limiting configuration
	rateLimitConfig := middleware.LoadRateLimitConfig()
	log.Printf("🛡️  [RATE-LIMIT] Loaded config: Global=%d/min, Read=%d/min, Inject=%d/min, WS=%d/min",
		rateLimitConfig.GlobalAPIMax,
		rateLimitConfig.ReadMax,
		rateLimitConfig.InjectMax,
		rateLimitConfig.WebSocketMax,
	)

	// Fiber's CORS middleware does not allow AllowCredentials with
	// wildcard origins.
	allowCredentials := cfg.CORSOrigins != "*"
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: allowCredentials,
	}))
	log.Printf("🔒 [SECURITY] CORS allowed origins: %s", cfg.CORSOrigins)

	// Global API rate limiter - first line of defense against floods
	app.Use("/api", middleware.GlobalAPIRateLimiter(rateLimitConfig))
	log.Println("🛡️  [RATE-LIMIT] Global API rate limiter enabled")

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(registry, stream)
	moduleHandler := handlers.NewModuleHandler(hub, registry)
	statsHandler := handlers.NewStatsHandler(bus, registry, store)
	eventsHandler := handlers.NewEventsHandler(bus)
	simulateHandler := handlers.NewSimulateHandler(bus, simScheduler)
	streamHandler := handlers.NewEventStreamHandler(stream)

	readLimiter := middleware.ReadRateLimiter(rateLimitConfig)
	injectLimiter := middleware.InjectRateLimiter(rateLimitConfig)

	app.Get("/", healthHandler.Root)
	app.Get("/health", healthHandler.Handle)

	api := app.Group("/api")

	// Module registration
	api.Post("/modules/register", moduleHandler.Register)
	api.Get("/modules", readLimiter, moduleHandler.List)
	api.Get("/modules/:id", readLimiter, moduleHandler.Get)
	api.Delete("/modules/:id", moduleHandler.Delete)

	// Observability
	api.Get("/stats/modules", readLimiter, statsHandler.Modules)
	api.Get("/stats/events", readLimiter, statsHandler.Events)
	api.Get("/stats/context", readLimiter, statsHandler.Context)
	api.Get("/events/recent", readLimiter, eventsHandler.Recent)

	// Injection and simulation fan out through the whole hub, so they get
	// the tightest per-IP budget
	api.Post("/events", injectLimiter, eventsHandler.Inject)

	sim := api.Group("/simulate", injectLimiter)
	sim.Post("/task", simulateHandler.Task)
	sim.Post("/message", simulateHandler.Message)
	sim.Post("/burst", simulateHandler.Burst)
	sim.Post("/schedules", simulateHandler.CreateSchedule)
	sim.Get("/schedules", simulateHandler.ListSchedules)
	sim.Delete("/schedules/:id", simulateHandler.DeleteSchedule)

	// WebSocket event stream
	app.Use("/ws/events", middleware.WebSocketRateLimiter(rateLimitConfig))
	app.Use("/ws/events", streamHandler.Upgrade)
	app.Get("/ws/events", websocket.New(streamHandler.Handle))

	// Start server
	log.Printf("✅ Server ready on %s:%s", cfg.Host, cfg.Port)
	log.Printf("🔗 Event stream: ws://localhost:%s/ws/events", cfg.Port)
	log.Printf("📡 Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	// Handle graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("\n🛑 Shutting down server...")

		// Stop background jobs
		runner.Stop()

		// Stop the simulation scheduler
		if err := simScheduler.Stop(); err != nil {
			log.Printf("⚠️ Error stopping simulation scheduler: %v", err)
		}

		// Detach built-in modules
		for _, m := range builtins {
			m.Stop()
		}

		// Stop the stream tap and the hub last so in-flight events finish
		stream.Stop()
		hub.Stop()

		// Shutdown Fiber
		if err := app.Shutdown(); err != nil {
			log.Printf("⚠️ Error shutting down server: %v", err)
		}
	}()

	if err := app.Listen(cfg.Host + ":" + cfg.Port); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
}

// startRoutingFileWatcher watches the routing config for changes and reloads
func startRoutingFileWatcher(filePath string, router *services.RelevanceRouter) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Printf("⚠️  Failed to create file watcher: %v", err)
		return
	}

	// Get absolute path for the file
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		log.Printf("⚠️  Failed to get absolute path for %s: %v", filePath, err)
		watcher.Close()
		return
	}

	// Watch the directory containing the file (more reliable than watching the file directly)
	dir := filepath.Dir(absPath)
	filename := filepath.Base(absPath)

	if err := watcher.Add(dir); err != nil {
		log.Printf("⚠️  Failed to watch directory %s: %v", dir, err)
		watcher.Close()
		return
	}

	log.Printf("👁️  Watching %s for routing changes (hot-reload enabled)", filePath)

	// Debounce timer to avoid multiple reloads for rapid file changes
	var debounceTimer *time.Timer
	debounceDuration := 500 * time.Millisecond

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Only react to changes to our specific file
			if filepath.Base(event.Name) != filename {
				continue
			}

			// React to write and create events
			if event.Op&fsnotify.Write == fsnotify.Write || event.Op&fsnotify.Create == fsnotify.Create {
				// Debounce: cancel previous timer and set a new one
				if debounceTimer != nil {
					debounceTimer.Stop()
				}

				debounceTimer = time.AfterFunc(debounceDuration, func() {
					log.Printf("🔄 Detected changes in %s, reloading routing table...", filePath)

					if err := router.LoadFile(filePath); err != nil {
						log.Printf("❌ Failed to reload routing table: %v", err)
					} else {
						log.Printf("✅ Routing table reloaded from %s", filePath)
					}
				})
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Printf("⚠️  File watcher error: %v", err)
		}
	}
}
