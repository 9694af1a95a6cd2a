package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidcast/internal/chat"
	"vidcast/internal/ingest"
	"vidcast/internal/media"
	"vidcast/internal/platform/config"
	"vidcast/internal/platform/logger"
	"vidcast/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	_ "github.com/mattn/go-sqlite3"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = config.Load()

	port := config.GetEnv("PORT", "8080")
	dbPath := config.GetEnv("DB_PATH", "vidcast.db")
	mediaRoot := config.GetEnv("MEDIA_ROOT", "")
	logLevel := config.GetEnv("LOG_LEVEL", "info")
	logFormat := config.GetEnv("LOG_FORMAT", "json")

	ingestCfg := ingest.Config{
		Addr:          config.GetEnv("INGEST_ADDR", ingest.DefaultAddr),
		MaxChunkSize:  config.GetEnvInt("INGEST_MAX_CHUNK_SIZE", ingest.DefaultMaxChunkSize),
		FastJoinCache: config.GetEnvBool("INGEST_FAST_JOIN_CACHE", true),
		CacheCapacity: config.GetEnvInt("INGEST_CACHE_CAPACITY", ingest.DefaultCacheCapacity),
		PingInterval:  config.GetEnvDuration("INGEST_PING_INTERVAL", ingest.DefaultPingInterval),
		PingTimeout:   config.GetEnvDuration("INGEST_PING_TIMEOUT", ingest.DefaultPingTimeout),
	}

	log := logger.New(logLevel, logFormat)

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		log.Error("open database", "path", dbPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	metaStore, err := media.NewSQLiteMetadataStore(db)
	if err != nil {
		log.Error("metadata store init", "error", err)
		os.Exit(1)
	}
	msgStore, err := chat.NewSQLiteMessageStore(db)
	if err != nil {
		log.Error("message store init", "error", err)
		os.Exit(1)
	}

	var blobs media.BlobStore
	if mediaRoot != "" {
		fsStore, err := media.NewFSBlobStore(mediaRoot)
		if err != nil {
			log.Error("blob store init", "root", mediaRoot, "error", err)
			os.Exit(1)
		}
		blobs = fsStore
	} else {
		blobs = media.NewMemoryBlobStore()
	}

	met := metrics.New()

	mediaSvc := media.NewService(blobs, metaStore)
	mediaH := media.NewHandler(mediaSvc, log, met)

	broker := chat.NewBroker(msgStore, log)
	chatH := chat.NewHandler(broker, log, met)

	gw := ingest.NewGateway(ingestCfg, log, met)

	r := chi.NewRouter()
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		met.Handler(func() {
			met.SetActiveIngestSessions(gw.ActiveSessionCount())
			met.SetActiveChatRooms(broker.RoomCount())
		}).ServeHTTP(w, req)
	})
	r.Route("/videos", func(r chi.Router) {
		r.Get("/", mediaH.ListVideos)
		r.Post("/view", mediaH.RecordView)
		// POST /videos/upload belongs to the upload collaborator and is
		// mounted by the deployment that runs it.
		r.Route("/{video_id}", func(r chi.Router) {
			r.Get("/stream", mediaH.Stream)
			r.Get("/thumbnail", mediaH.Thumbnail)
		})
	})
	r.Get("/chat", chatH.ServeWS)

	addr := ":" + port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()
	go func() {
		if err := gw.ListenAndServe(); err != nil {
			log.Error("ingest gateway error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"port", port,
		"ingest_addr", ingestCfg.Addr,
		"db_path", dbPath,
		"log_level", logLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Info("shutdown signal received, draining connections")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	if err := gw.Shutdown(ctx); err != nil {
		log.Error("ingest shutdown error", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
