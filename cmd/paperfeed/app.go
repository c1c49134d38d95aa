package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	redis "github.com/redis/go-redis/v9"

	"github.com/blackmichael/bluesky-paper-feed/internal/bluesky"
	"github.com/blackmichael/bluesky-paper-feed/internal/config"
	"github.com/blackmichael/bluesky-paper-feed/internal/domain"
	"github.com/blackmichael/bluesky-paper-feed/internal/firehose"
	"github.com/blackmichael/bluesky-paper-feed/internal/memory"
	"github.com/blackmichael/bluesky-paper-feed/internal/metrics"
	"github.com/blackmichael/bluesky-paper-feed/internal/postgres"
	"github.com/blackmichael/bluesky-paper-feed/internal/queue"
	"github.com/blackmichael/bluesky-paper-feed/internal/rediskv"
	"github.com/blackmichael/bluesky-paper-feed/internal/sqlite"
)

// stream is one pipeline queue: stages send to it and consume from it.
type stream interface {
	domain.MessageSender
	queue.Consumer
}

// app holds the collaborators shared by every subcommand.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Pipeline

	posts  domain.PostRepository
	users  domain.UserRepository
	access domain.AccessLogRepository
	cache  domain.FeedCache

	rawEvents    stream
	genRequests  stream
	accessEvents stream

	repo    *postgres.Repository
	closers []io.Closer
}

// newApp connects the configured storage backend.
func newApp(ctx context.Context, logLevel string) (*app, error) {
	logger, err := newLogger(logLevel)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a := &app{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.NewPipeline(registry),
	}

	switch cfg.StorageBackend {
	case config.BackendMemory:
		a.useMemory()
	default:
		if err := a.usePostgres(ctx); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func (a *app) useMemory() {
	a.logger.Warn("using in-memory storage, state is lost on exit")
	a.posts = memory.NewPostStore()
	a.users = memory.NewUserStore()
	a.access = memory.NewAccessLog()
	a.cache = memory.NewFeedCache()
	newQueue := func(name string) *memory.Queue {
		q := memory.NewQueue(name, a.logger)
		if a.cfg.QueueMaxDeliveries > 0 {
			q.MaxDeliveries = a.cfg.QueueMaxDeliveries
		}
		return q
	}
	a.rawEvents = newQueue(queue.RawEvents)
	a.genRequests = newQueue(queue.GenRequests)
	a.accessEvents = newQueue(queue.AccessEvents)
}

func (a *app) usePostgres(ctx context.Context) error {
	repo, err := postgres.NewRepository(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	a.closers = append(a.closers, repo)
	a.logger.Info("connected to database")

	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.RedisAddr,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	})
	a.closers = append(a.closers, client)
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	a.logger.Info("connected to redis", "addr", a.cfg.RedisAddr)

	consumer, _ := os.Hostname()
	if consumer == "" {
		consumer = "paperfeed"
	}
	newStream := func(name string) *queue.RedisStream {
		return queue.NewRedisStream(client, name, queue.StreamOptions{
			Consumer:      fmt.Sprintf("%s-%d", consumer, os.Getpid()),
			MaxLen:        100_000,
			MaxDeliveries: int64(a.cfg.QueueMaxDeliveries),
		}, a.logger)
	}

	a.repo = repo
	a.posts = repo
	a.users = repo
	a.access = repo
	a.cache = rediskv.NewFeedCache(client)
	a.rawEvents = newStream(queue.RawEvents)
	a.genRequests = newStream(queue.GenRequests)
	a.accessEvents = newStream(queue.AccessEvents)
	return nil
}

// Close releases every connection opened by newApp.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	return errors.Join(errs...)
}

func (a *app) filterStage() (*domain.FilterStage, error) {
	classifier, err := config.NewClassifier(a.cfg.PatternsFile)
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	coalescer := domain.NewWriteCoalescer(a.posts, a.metrics)
	return domain.NewFilterStage(classifier, coalescer, a.logger.With("stage", "filter")), nil
}

func (a *app) feedBuilder() *domain.FeedBuilder {
	cfg := domain.DefaultGeneratorConfig()
	cfg.FollowLimit = a.cfg.FollowLimit
	cfg.FeedLimit = a.cfg.FeedLimit
	cfg.TTL = a.cfg.FeedTTL

	graph := bluesky.NewClient(a.cfg.PublicAPIURL)
	return domain.NewFeedBuilder(graph, a.posts, a.cache, cfg, a.logger.With("stage", "generate"), a.metrics)
}

func (a *app) dispatcher() *domain.Dispatcher {
	return domain.NewDispatcher(a.users, a.genRequests, a.logger.With("stage", "dispatch"), a.metrics)
}

func (a *app) bookkeeper() *domain.AccessBookkeeper {
	return domain.NewAccessBookkeeper(a.access, a.users, a.cfg.ConsentThreshold, a.logger.With("stage", "bookkeep"), a.metrics)
}

func (a *app) feedService() *domain.FeedService {
	identity := domain.FeedIdentity{
		ServiceDID:  a.cfg.ServiceDID(),
		FeedURI:     a.cfg.FeedURI(),
		Name:        a.cfg.FeedName,
		Description: a.cfg.FeedDescription,
	}
	return domain.NewFeedService(identity, a.cache, a.accessEvents, a.genRequests, a.cfg.FeedLimit, a.logger.With("stage", "serve"), a.metrics)
}

// ingestor opens the cursor store; it is closed with the app.
func (a *app) ingestor(ctx context.Context) (*firehose.Ingestor, error) {
	cursors, err := sqlite.Open(ctx, a.cfg.CursorDBPath)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, cursors)

	source := firehose.NewJetstreamSource(a.cfg.FirehoseURL, a.logger)
	return firehose.NewIngestor(source, cursors, a.rawEvents, firehose.IngestorConfig{
		BatchSize:     a.cfg.IngestBatchSize,
		FlushInterval: a.cfg.IngestFlushInterval,
	}, a.logger.With("stage", "ingest"), a.metrics), nil
}
