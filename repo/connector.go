package repo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Skryldev/proofing-amp/db"
	"github.com/Skryldev/proofing-amp/models"
)

// Backend names returned by BackendFor.
const (
	BackendMongo = "mongo"
	BackendRedis = "redis"
	BackendSQL   = "sql"
)

// BackendFor returns the backend that serves uri.
func BackendFor(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("repo: parse uri: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "mongodb", "mongodb+srv":
		return BackendMongo, nil
	case "redis", "rediss":
		return BackendRedis, nil
	}
	if db.Handles(uri) {
		return BackendSQL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
}

// ConnectorConfig configures how Connector opens clients.
type ConnectorConfig struct {
	// SQL holds pool settings and hooks for SQL backends. DSN and DriverName
	// are derived from each URI.
	SQL db.Config
	// Retry governs opening SQL databases. MaxAttempts below 1 means one try.
	Retry db.RetryConfig
	// ConnectTimeout bounds MongoDB and Redis dials. Zero keeps driver defaults.
	ConnectTimeout time.Duration
	// Logger defaults to slog.Default() if nil.
	Logger *slog.Logger
}

// Connector opens stores and shares one client per distinct URI, so several
// contexts pointing at the same server use one connection pool.
type Connector struct {
	cfg    ConnectorConfig
	logger *slog.Logger

	mu    sync.Mutex
	sql   map[string]*db.DB
	mongo map[string]*mongo.Client
	redis map[string]*redis.Client
}

// NewConnector returns a Connector with no open clients.
func NewConnector(cfg ConnectorConfig) *Connector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Retry.RetryOn == nil {
		cfg.Retry.RetryOn = db.IsConnectionFailed
	}
	return &Connector{
		cfg:    cfg,
		logger: logger,
		sql:    make(map[string]*db.DB),
		mongo:  make(map[string]*mongo.Client),
		redis:  make(map[string]*redis.Client),
	}
}

// Open returns the store for ns on the server uri points at, validating
// documents against schema.
func (c *Connector) Open(ctx context.Context, uri string, ns Namespace, schema *models.Schema) (Store, error) {
	backend, err := BackendFor(uri)
	if err != nil {
		return nil, err
	}

	var store Store
	switch backend {
	case BackendMongo:
		client, err := c.mongoClient(ctx, uri)
		if err != nil {
			return nil, err
		}
		store, err = NewMongoUserRepo(client, ns, schema)
		if err != nil {
			return nil, err
		}
	case BackendRedis:
		client, err := c.redisClient(uri)
		if err != nil {
			return nil, err
		}
		store, err = NewRedisUserRepo(client, ns, schema)
		if err != nil {
			return nil, err
		}
	default:
		d, err := c.sqlDB(ctx, uri)
		if err != nil {
			return nil, err
		}
		store, err = NewSQLUserRepo(d, ns, schema)
		if err != nil {
			return nil, err
		}
	}

	c.logger.DebugContext(ctx, "repo: store opened",
		slog.String("backend", backend),
		slog.String("uri", redact(uri)),
		slog.String("namespace", ns.String()),
	)
	return store, nil
}

func (c *Connector) mongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.mongo[uri]; ok {
		return client, nil
	}

	opts := options.Client().ApplyURI(uri)
	if c.cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(c.cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(c.cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("repo/mongo: connect %s: %w", redact(uri), err)
	}
	c.mongo[uri] = client
	return client, nil
}

func (c *Connector) redisClient(uri string) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.redis[uri]; ok {
		return client, nil
	}

	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("repo/redis: parse %s: %w", redact(uri), err)
	}
	if c.cfg.ConnectTimeout > 0 {
		opts.DialTimeout = c.cfg.ConnectTimeout
	}
	client := redis.NewClient(opts)
	c.redis[uri] = client
	return client, nil
}

func (c *Connector) sqlDB(ctx context.Context, uri string) (*db.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d, ok := c.sql[uri]; ok {
		return d, nil
	}

	var d *db.DB
	err := db.WithRetry(ctx, c.cfg.Retry, func() error {
		var err error
		d, err = db.OpenURL(uri, c.cfg.SQL)
		if err != nil {
			c.logger.WarnContext(ctx, "repo: sql open failed", slog.String("uri", redact(uri)), slog.Any("error", err))
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("repo/sql: open %s: %w", redact(uri), err)
	}
	c.sql[uri] = d
	return d, nil
}

// Close disconnects every client the Connector opened.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error
	for uri, client := range c.mongo {
		if err := client.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("repo/mongo: disconnect %s: %w", redact(uri), err))
		}
		delete(c.mongo, uri)
	}
	for uri, client := range c.redis {
		if err := client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("repo/redis: close %s: %w", redact(uri), err))
		}
		delete(c.redis, uri)
	}
	for uri, d := range c.sql {
		if err := d.Close(); err != nil {
			errs = append(errs, fmt.Errorf("repo/sql: close %s: %w", redact(uri), err))
		}
		delete(c.sql, uri)
	}
	return errors.Join(errs...)
}

// redact hides the password of uri for logging.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return "<unparseable uri>"
	}
	return u.Redacted()
}
