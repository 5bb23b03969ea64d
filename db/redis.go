package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"fairplay/config"
	"fairplay/fairness"
	"fairplay/verdict"
)

// RedisStore keeps live sessions in Redis with a TTL. Revealed sessions are
// kept longer so verifiers can still fetch the reveal.
//
// Redis Key: session:{sessionId} -> JSON session
type RedisStore struct {
	client *redis.Client
}

// RedisOptions mirrors the connection settings read from the environment.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitRedis connects to Redis and pings it.
func InitRedis(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	log.WithField("addr", opts.Addr).Info("Connecting to Redis")

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.WithField("addr", opts.Addr).Info("Redis connected")
	return NewRedisStore(client), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	log.Info("Closing Redis connection")
	return s.client.Close()
}

func sessionKey(id string) string {
	return fmt.Sprintf(config.RedisSessionKey, id)
}

func sessionTTL(sess *fairness.Session) time.Duration {
	if sess.Ended() {
		return config.RevealedSessionTTL
	}
	return config.SessionTTL
}

func (s *RedisStore) CreateSession(ctx context.Context, sess *fairness.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, sessionKey(sess.ID), data, sessionTTL(sess)).Result()
	if err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if !ok {
		return verdict.New(verdict.KindStructuralError, "session %s already exists", sess.ID)
	}
	return nil
}

func (s *RedisStore) LoadSession(ctx context.Context, id string) (*fairness.Session, error) {
	data, err := s.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, verdict.New(verdict.KindSessionNotFound, "session %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var sess fairness.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// UpdateSession is an optimistic read-modify-write: the key is WATCHed, fn
// runs on the decoded session and the result is written in a MULTI/EXEC.
// When another client writes the key first the transaction is retried.
func (s *RedisStore) UpdateSession(ctx context.Context, id string, fn func(*fairness.Session) error) error {
	key := sessionKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return verdict.New(verdict.KindSessionNotFound, "session %s", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get session: %w", err)
		}

		var sess fairness.Session
		if err := json.Unmarshal(data, &sess); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		if err := fn(&sess); err != nil {
			return err
		}
		sess.ID = id

		out, err := json.Marshal(&sess)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, sessionTTL(&sess))
			return nil
		})
		return err
	}

	for attempt := 0; attempt < config.RedisUpdateRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		log.WithFields(log.Fields{
			"session": id,
			"attempt": attempt + 1,
		}).Debug("Session changed during update, retrying")
	}
	return fmt.Errorf("session %s: update lost %d races", id, config.RedisUpdateRetries)
}
