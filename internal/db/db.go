package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"student-management-api/internal/config"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotInitialized is returned by collection accessors before the initial
// connection has completed.
var ErrNotInitialized = errors.New("database not initialized")

// Mongo holds the single shared client for the process lifetime. Connect may
// run in the background; every accessor checks readiness first.
type Mongo struct {
	cfg    config.MongoConfig
	logger *slog.Logger

	mu         sync.RWMutex
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
}

func New(cfg config.MongoConfig, logger *slog.Logger) *Mongo {
	return &Mongo{
		cfg:    cfg,
		logger: logger,
	}
}

// Connect establishes the client with bounded retries and ensures the unique
// indexes exist before the gateway reports ready. It blocks until connected
// or until all attempts are exhausted.
func (m *Mongo) Connect(ctx context.Context) error {
	maxAttempts := m.cfg.MaxConnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		client, err := m.tryConnect(ctx)
		if err == nil {
			database := client.Database(m.cfg.Database)
			collection := database.Collection(m.cfg.Collection)

			if err = ensureIndexes(ctx, collection); err != nil {
				client.Disconnect(ctx)
			} else {
				m.mu.Lock()
				m.client = client
				m.database = database
				m.collection = collection
				m.mu.Unlock()

				m.logger.Info("connected to MongoDB",
					"database", m.cfg.Database,
					"collection", m.cfg.Collection,
				)
				return nil
			}
		}

		lastErr = err
		m.logger.Error("MongoDB connection attempt failed",
			"attempt", attempt,
			"max_attempts", maxAttempts,
			"error", err,
		)

		if attempt == maxAttempts {
			break
		}

		select {
		case <-time.After(BackoffDelay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("failed to connect to MongoDB after %d attempts: %w", maxAttempts, lastErr)
}

func (m *Mongo) tryConnect(ctx context.Context) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(m.cfg.URI).
		SetMaxPoolSize(m.cfg.MaxPoolSize).
		SetConnectTimeout(time.Duration(m.cfg.ConnectTimeout) * time.Second).
		SetServerSelectionTimeout(time.Duration(m.cfg.ServerSelectionTimeout) * time.Second).
		SetSocketTimeout(time.Duration(m.cfg.SocketTimeout) * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}

	// Connect does not round-trip; ping to be sure the server is actually there.
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return client, nil
}

func ensureIndexes(ctx context.Context, collection *mongo.Collection) error {
	unique := options.Index().SetUnique(true)
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "studentId", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "phone", Value: 1}}, Options: unique},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

// BackoffDelay returns the wait before the next connection attempt:
// 1s doubling per attempt, capped at 10s.
func BackoffDelay(attempt int) time.Duration {
	delay := time.Second << attempt
	if delay > 10*time.Second {
		delay = 10 * time.Second
	}
	return delay
}

// Ready reports whether the initial connection has completed.
func (m *Mongo) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client != nil
}

// Collection returns the students collection, or ErrNotInitialized before
// the connection completes.
func (m *Mongo) Collection() (*mongo.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.collection == nil {
		return nil, ErrNotInitialized
	}
	return m.collection, nil
}

// Ping actively round-trips to the server rather than checking a cached flag.
func (m *Mongo) Ping(ctx context.Context) error {
	m.mu.RLock()
	client := m.client
	m.mu.RUnlock()

	if client == nil {
		return ErrNotInitialized
	}
	return client.Ping(ctx, nil)
}

func (m *Mongo) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(ctx)
	m.client = nil
	m.database = nil
	m.collection = nil
	return err
}

// DuplicateKeyField maps a unique-index violation to the conflicting field
// name (studentId, email or phone). The driver reports the index name, e.g.
// "index: email_1 dup key".
func DuplicateKeyField(err error) (string, bool) {
	if err == nil || !mongo.IsDuplicateKeyError(err) {
		return "", false
	}

	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if field, ok := fieldFromIndexMessage(e.Message); ok {
				return field, true
			}
		}
	}

	var ce mongo.CommandError
	if errors.As(err, &ce) {
		if field, ok := fieldFromIndexMessage(ce.Message); ok {
			return field, true
		}
	}

	return "", true
}

func fieldFromIndexMessage(msg string) (string, bool) {
	const marker = "index: "
	i := strings.Index(msg, marker)
	if i < 0 {
		return "", false
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexAny(rest, " }"); j >= 0 {
		rest = rest[:j]
	}
	return strings.TrimSuffix(rest, "_1"), rest != ""
}
