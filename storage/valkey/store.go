package valkey

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	valkeygo "github.com/valkey-io/valkey-go"

	"github.com/Galoniax/dualeat-auth/instrumentation"
	"github.com/Galoniax/dualeat-auth/storage"
)

const (
	// DefaultKeyPrefix is the default prefix for all Valkey keys
	DefaultKeyPrefix = "dualeat:"

	// scanBatchSize is the number of keys to fetch per SCAN iteration
	scanBatchSize = 100

	// connectionVerifyTimeout is the timeout for initial connection verification
	connectionVerifyTimeout = 5 * time.Second

	// opaqueIDBytes is the entropy of generated session ids (hex-encoded
	// to twice this length)
	opaqueIDBytes = 32
)

// Config holds configuration for the Valkey storage backend.
type Config struct {
	// Address is the Valkey server address (required), e.g., "localhost:6379"
	Address string

	// Password is the optional password for Valkey authentication
	Password string

	// DB is the optional database number (default 0)
	DB int

	// KeyPrefix is the prefix for all keys (default "dualeat:").
	// The prefix is transparent to callers: logical keys like
	// "session:{id}" are stored as "{prefix}session:{id}" and returned
	// from Keys with the prefix stripped.
	KeyPrefix string

	// TLS is the optional TLS configuration for encrypted connections
	TLS *tls.Config

	// Logger is the optional structured logger (default: slog.Default())
	Logger *slog.Logger

	// Instrumentation provides operation metrics. Optional; when nil no
	// metrics are recorded.
	Instrumentation *instrumentation.Instrumentation
}

// Store is a Valkey-backed implementation of storage.KV.
type Store struct {
	client  valkeygo.Client
	prefix  string
	logger  *slog.Logger
	metrics *instrumentation.Metrics
}

// Compile-time interface check
var _ storage.KV = (*Store)(nil)

// New creates a new Valkey-backed store.
// Returns an error if the connection cannot be established.
func New(cfg Config) (*Store, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("valkey address is required")
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := valkeygo.ClientOption{
		InitAddress: []string{cfg.Address},
		SelectDB:    cfg.DB,
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	if cfg.TLS != nil {
		opts.TLSConfig = cfg.TLS
	}

	client, err := valkeygo.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), connectionVerifyTimeout)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to valkey: %w", err)
	}

	logger.Info("Connected to Valkey storage",
		"address", cfg.Address,
		"db", cfg.DB,
		"prefix", prefix)

	var metrics *instrumentation.Metrics
	if cfg.Instrumentation != nil {
		metrics = cfg.Instrumentation.Metrics()
	}

	return &Store{
		client:  client,
		prefix:  prefix,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Close closes the Valkey client connection.
func (s *Store) Close() {
	s.client.Close()
	s.logger.Info("Valkey storage connection closed")
}

// key applies the configured prefix to a logical key.
func (s *Store) key(logical string) string {
	return s.prefix + logical
}

// Set stores value under key with the given TTL.
func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) (err error) {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation(ctx, "set", start, err) }()

	if err := s.client.Do(ctx,
		s.client.B().Set().Key(s.key(key)).Value(value).Ex(ttl).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Get retrieves the value for key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()

	value, err := s.client.Do(ctx, s.client.B().Get().Key(s.key(key)).Build()).ToString()
	if err != nil {
		if isNilError(err) {
			// An absent key is a normal outcome, not a failed operation.
			s.metrics.RecordStoreOperation(ctx, "get", start, nil)
			return "", storage.ErrNotFound
		}
		s.metrics.RecordStoreOperation(ctx, "get", start, err)
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	s.metrics.RecordStoreOperation(ctx, "get", start, nil)
	return value, nil
}

// Delete removes a key. Absent keys are a no-op.
func (s *Store) Delete(ctx context.Context, key string) (err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation(ctx, "delete", start, err) }()

	if err := s.client.Do(ctx, s.client.B().Del().Key(s.key(key)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// TTL reports the remaining lifetime of key. Valkey reports -2 for
// absent keys and -1 for keys without expiry; both collapse to 0 here
// because every key this subsystem writes carries a TTL.
func (s *Store) TTL(ctx context.Context, key string) (_ time.Duration, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation(ctx, "ttl", start, err) }()

	seconds, err := s.client.Do(ctx, s.client.B().Ttl().Key(s.key(key)).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("failed to query ttl: %w", err)
	}
	if seconds < 0 {
		return 0, nil
	}
	return time.Duration(seconds) * time.Second, nil
}

// Expire updates the TTL of an existing key without rewriting its value.
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (err error) {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}

	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation(ctx, "expire", start, err) }()

	seconds := int64(ttl / time.Second)
	if seconds == 0 {
		seconds = 1
	}

	if err := s.client.Do(ctx,
		s.client.B().Expire().Key(s.key(key)).Seconds(seconds).Build(),
	).Error(); err != nil {
		return fmt.Errorf("failed to expire key: %w", err)
	}
	return nil
}

// Keys lists keys matching a glob pattern using SCAN.
func (s *Store) Keys(ctx context.Context, pattern string) (_ []string, err error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreOperation(ctx, "keys", start, err) }()

	// Use a map to deduplicate results (SCAN can return duplicates
	// across iterations)
	seen := make(map[string]struct{})
	var keys []string

	var cursor uint64
	for {
		result, err := s.client.Do(ctx,
			s.client.B().Scan().Cursor(cursor).Match(s.key(pattern)).Count(scanBatchSize).Build(),
		).AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to scan keys: %w", err)
		}

		for _, key := range result.Elements {
			logical := strings.TrimPrefix(key, s.prefix)
			if _, ok := seen[logical]; ok {
				continue
			}
			seen[logical] = struct{}{}
			keys = append(keys, logical)
		}

		cursor = result.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}

// NewID generates a high-entropy opaque identifier.
func (s *Store) NewID() string {
	b := make([]byte, opaqueIDBytes)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("failed to read random bytes: %v", err))
	}
	return hex.EncodeToString(b)
}

// isNilError reports whether err is the Valkey nil reply (key absent).
func isNilError(err error) bool {
	return valkeygo.IsValkeyNil(err)
}
