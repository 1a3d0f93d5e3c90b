// Package envstore keeps one variable document per workflow in Redis.
package envstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vendor-onboarding/internal/onboarding/variables"
)

// maxUpdateAttempts bounds the optimistic retries of Update.
const maxUpdateAttempts = 8

// ErrContention is returned when Update keeps losing to concurrent writers.
var ErrContention = stderrors.New("environment document is contended")

type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a store writing keys as prefix+workflowID. A zero ttl keeps
// documents until Delete.
func New(client redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(workflowID string) string {
	return s.prefix + workflowID
}

// Save replaces the whole document for workflowID.
func (s *Store) Save(ctx context.Context, workflowID string, doc *variables.Store) error {
	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode environment %s: %w", workflowID, err)
	}
	if err := s.client.Set(ctx, s.key(workflowID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save environment %s: %w", workflowID, err)
	}
	return nil
}

// Load returns nil, nil when no document exists.
func (s *Store) Load(ctx context.Context, workflowID string) (*variables.Store, error) {
	return decode(workflowID, s.client.Get(ctx, s.key(workflowID)))
}

func decode(workflowID string, cmd *redis.StringCmd) (*variables.Store, error) {
	data, err := cmd.Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load environment %s: %w", workflowID, err)
	}

	doc := variables.New()
	if err := doc.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decode environment %s: %w", workflowID, err)
	}
	return doc, nil
}

// Update rewrites the document under WATCH/MULTI so concurrent writers to
// the same workflow cannot drop each other's variables. fn receives the
// stored document (nil when absent) and returns the one to write; it is
// re-run against the fresh document whenever the key changed underneath it.
func (s *Store) Update(ctx context.Context, workflowID string, fn func(current *variables.Store) (*variables.Store, error)) error {
	key := s.key(workflowID)
	txf := func(tx *redis.Tx) error {
		current, err := decode(workflowID, tx.Get(ctx, key))
		if err != nil {
			return err
		}
		next, err := fn(current)
		if err != nil {
			return err
		}
		data, err := next.MarshalJSON()
		if err != nil {
			return fmt.Errorf("encode environment %s: %w", workflowID, err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("update environment %s: %w", workflowID, err)
		}
	}
	return fmt.Errorf("update environment %s: %w", workflowID, ErrContention)
}

// Delete removes the document; deleting a missing one is not an error.
func (s *Store) Delete(ctx context.Context, workflowID string) error {
	if err := s.client.Del(ctx, s.key(workflowID)).Err(); err != nil {
		return fmt.Errorf("delete environment %s: %w", workflowID, err)
	}
	return nil
}

func (s *Store) Health(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}
