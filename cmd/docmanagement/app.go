package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BenardMarashi/docmanagement/internal/config"
	dbRedis "github.com/BenardMarashi/docmanagement/internal/db/redis"
	domdoc "github.com/BenardMarashi/docmanagement/internal/domain/document"
	"github.com/BenardMarashi/docmanagement/internal/domain/index"
	"github.com/BenardMarashi/docmanagement/internal/extract"
	logpkg "github.com/BenardMarashi/docmanagement/internal/logger"
	"github.com/BenardMarashi/docmanagement/internal/metrics"
	"github.com/BenardMarashi/docmanagement/internal/queue"
	"github.com/BenardMarashi/docmanagement/internal/queue/memory"
	natsq "github.com/BenardMarashi/docmanagement/internal/queue/nats"
	"github.com/BenardMarashi/docmanagement/internal/repository/blob"
	badgerblob "github.com/BenardMarashi/docmanagement/internal/repository/blob/badger"
	"github.com/BenardMarashi/docmanagement/internal/repository/record"
	mongorecord "github.com/BenardMarashi/docmanagement/internal/repository/record/mongo"
	sqliterecord "github.com/BenardMarashi/docmanagement/internal/repository/record/sqlite"
	"github.com/BenardMarashi/docmanagement/internal/repository/searchindex"
	bleveindex "github.com/BenardMarashi/docmanagement/internal/repository/searchindex/bleve"
	"github.com/BenardMarashi/docmanagement/internal/retry"
	chiTransport "github.com/BenardMarashi/docmanagement/internal/transport/chi"
	openaiExt "github.com/BenardMarashi/docmanagement/internal/transport/openai"
	documentuc "github.com/BenardMarashi/docmanagement/internal/usecase/document"
	"github.com/BenardMarashi/docmanagement/internal/usecase/extraction"
	healthuc "github.com/BenardMarashi/docmanagement/internal/usecase/health"
	"github.com/BenardMarashi/docmanagement/internal/usecase/indexing"
	searchuc "github.com/BenardMarashi/docmanagement/internal/usecase/search"
)

// role selects which components a process runs.
type role uint8

const (
	roleAPI role = 1 << iota
	roleWorker
	roleIndexer
)

func (r role) has(x role) bool { return r&x != 0 }

// recordStore is what every record driver provides.
type recordStore interface {
	Create(ctx context.Context, rec *domdoc.Record) (domdoc.Record, error)
	FindByID(ctx context.Context, id int64) (domdoc.Record, error)
	Update(ctx context.Context, rec *domdoc.Record) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, q domdoc.ListQuery) ([]domdoc.Record, error)
	Ping(ctx context.Context) error
}

// blobStore is what every blob driver provides.
type blobStore interface {
	Put(ctx context.Context, filename string, content []byte) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
	Ping(ctx context.Context) error
}

// indexBackend is what every search index driver provides.
type indexBackend interface {
	Upsert(ctx context.Context, e index.Entry) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q index.Query) (index.Page, error)
	Ping(ctx context.Context) error
}

// app is the composition root: drivers selected by config, wired into use cases.
type app struct {
	cfg    *config.Config
	roles  role
	logger *zap.Logger

	records   recordStore
	blobs     blobStore
	broker    queue.Broker
	queue     *queue.Client
	index     indexing.Index
	extractor extract.Extractor
	health    *healthuc.Service

	closers []func()
}

func build(ctx context.Context, cfg *config.Config, roles role, logger *zap.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, roles: roles, logger: logger, health: healthuc.New(2 * time.Second)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	metrics.RegisterPipelineMetrics()

	var redisStore *dbRedis.Store
	if cfg.Records.Driver == "redis" || cfg.SearchIndex.Driver == "redis" {
		redisStore, err = dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.Database.Addrs,
			Password: cfg.Database.Password,
		})
		if err != nil {
			return nil, fmt.Errorf("create redis store: %w", err)
		}
		a.onClose(redisStore.Close)
		if err := redisStore.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
			return nil, fmt.Errorf("redis not ready: %w", err)
		}
		logger.Info("connected to redis", zap.Strings("addrs", cfg.Database.Addrs))
	}

	if err := a.openRecords(ctx, redisStore); err != nil {
		return nil, err
	}
	if roles.has(roleAPI | roleWorker) {
		if err := a.openBlobs(); err != nil {
			return nil, err
		}
	}
	if err := a.openQueue(ctx); err != nil {
		return nil, err
	}
	if roles.has(roleAPI | roleIndexer) {
		if err := a.openIndex(ctx, redisStore); err != nil {
			return nil, err
		}
	}
	if roles.has(roleWorker) {
		a.extractor = a.buildExtractor()
	}
	return a, nil
}

func (a *app) openRecords(ctx context.Context, redisStore *dbRedis.Store) error {
	cfg := a.cfg.Records
	switch cfg.Driver {
	case "redis":
		a.records = record.New(redisStore, a.cfg.Database.KeyPrefix)
	case "sqlite":
		s, err := sqliterecord.Open(cfg.SQLite.Path)
		if err != nil {
			return fmt.Errorf("open sqlite records: %w", err)
		}
		a.onClose(func() { _ = s.Close() })
		a.records = s
	case "mongo":
		s, err := mongorecord.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Collection)
		if err != nil {
			return fmt.Errorf("connect mongo records: %w", err)
		}
		a.onClose(func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = s.Close(cctx)
		})
		a.records = s
	default:
		return fmt.Errorf("unknown records driver %q", cfg.Driver)
	}
	a.health.Register("records", a.records)
	return nil
}

func (a *app) openBlobs() error {
	cfg := a.cfg.Blobs
	switch cfg.Driver {
	case "fs":
		s, err := blob.NewFS(cfg.Dir)
		if err != nil {
			return fmt.Errorf("open blob dir: %w", err)
		}
		a.blobs = s
	case "badger":
		s, err := badgerblob.Open(cfg.Dir, false, a.logger.Named("badger"))
		if err != nil {
			return fmt.Errorf("open badger blobs: %w", err)
		}
		a.onClose(func() { _ = s.Close() })
		a.blobs = s
	default:
		return fmt.Errorf("unknown blobs driver %q", cfg.Driver)
	}
	a.health.Register("blobs", a.blobs)
	return nil
}

func (a *app) openQueue(ctx context.Context) error {
	cfg := a.cfg.Queue
	switch cfg.Driver {
	case "nats":
		b, err := natsq.Connect(ctx, natsq.Config{
			URL:           cfg.URL,
			Stream:        cfg.Stream,
			SubjectPrefix: cfg.SubjectPrefix,
			AckWait:       time.Duration(cfg.AckWaitSec) * time.Second,
		}, a.logger.Named("nats"))
		if err != nil {
			return err
		}
		a.broker = b
	case "memory":
		if a.roles != roleAPI|roleWorker|roleIndexer {
			a.logger.Warn("memory queue only reaches components in this process")
		}
		a.broker = memory.New(memory.WithAckWait(time.Duration(cfg.AckWaitSec) * time.Second))
	default:
		return fmt.Errorf("unknown queue driver %q", cfg.Driver)
	}
	a.onClose(func() { _ = a.broker.Close() })
	a.queue = queue.NewClient(a.broker, cfg.SubjectPrefix)
	a.health.Register("queue", a.queue)
	return nil
}

func (a *app) openIndex(ctx context.Context, redisStore *dbRedis.Store) error {
	cfg := a.cfg.SearchIndex
	var direct indexBackend
	switch cfg.Driver {
	case "redis":
		repo := searchindex.New(redisStore, cfg.Name, a.cfg.Database.KeyPrefix)
		if err := repo.EnsureIndex(ctx); err != nil {
			return fmt.Errorf("ensure search index: %w", err)
		}
		direct = repo
	case "bleve":
		idx, err := bleveindex.Open(cfg.BlevePath)
		if err != nil {
			return fmt.Errorf("open bleve index: %w", err)
		}
		a.onClose(func() { _ = idx.Close() })
		direct = idx
	default:
		return fmt.Errorf("unknown search index driver %q", cfg.Driver)
	}
	a.health.Register("search_index", direct)

	if !a.cfg.RetryEnabled() {
		a.index = direct
		return nil
	}
	policy := retry.Policy{
		MaxAttempts: a.cfg.Retry.MaxAttempts,
		BaseDelay:   a.cfg.RetryBaseDelay(),
		Multiplier:  a.cfg.Retry.Multiplier,
	}
	a.index = indexing.NewRetrying(direct, policy, time.Duration(cfg.TimeoutSec)*time.Second, a.logger.Named("index"))
	return nil
}

// buildExtractor routes text content to the plain text extractor and everything else
// to the configured OCR provider.
func (a *app) buildExtractor() extract.Extractor {
	cfg := a.cfg.Extraction
	router := extract.NewRouter(nil).
		Handle("text/", extract.PlainText{}).
		Handle("application/json", extract.PlainText{})

	if cfg.Driver == "openai" {
		ocr := openaiExt.NewExtractor(&openaiExt.Config{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.BaseURL,
			Model:     cfg.Model,
			MaxTokens: cfg.MaxTokens,
			Provider:  "openai",
			Logger:    a.logger.Named("openai"),
		})
		a.health.Register("extraction", healthuc.PingFunc(ocr.HealthCheck))
		router.Handle("image/", extract.NewRateLimited(ocr, cfg.RequestsPerSecond, cfg.Burst))
	}
	return router
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// run starts the components selected by roles and waits for all of them.
func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.roles.has(roleAPI) {
		srv := a.httpServer()
		g.Go(func() error {
			return serveHTTP(ctx, srv, time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second, a.logger)
		})
	}
	if a.roles.has(roleWorker) {
		w := extraction.New(a.records, a.blobs, a.extractor, a.queue, extraction.Options{
			Concurrency:   a.cfg.Worker.Concurrency,
			MaxDeliveries: a.cfg.Worker.MaxDeliveries,
			SkipExtracted: a.cfg.Worker.SkipExtracted,
		}, logpkg.Component(a.logger, "worker"))
		g.Go(func() error { return w.Run(ctx, a.queue) })
	}
	if a.roles.has(roleIndexer) {
		s := indexing.NewSynchronizer(a.index, a.records, logpkg.Component(a.logger, "indexer"))
		g.Go(func() error { return s.Run(ctx, a.queue) })
	}
	return g.Wait()
}

func (a *app) httpServer() *http.Server {
	docs := documentuc.New(a.records, a.blobs, a.queue, a.index, logpkg.Component(a.logger, "documents"))
	search := searchuc.New(a.index, logpkg.Component(a.logger, "search")).
		WithPagination(a.cfg.Search.DefaultPageSize, a.cfg.Search.MaxPageSize)

	server := chiTransport.NewServer(docs, search, a.health, chiTransport.Options{
		MaxUploadBytes: a.cfg.HTTP.MaxUploadBytes,
	}, a.logger)

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.HTTP.Port),
		Handler:           server.Routes(),
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
}

// serveHTTP runs srv until ctx is done, then shuts it down gracefully.
func serveHTTP(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
