package appservice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

const challengeKeyPrefix = "challenge/"

// ChallengeCache caches challenge lookups in BadgerDB with a TTL.
// Both players of a game fetch the same challenge within seconds of
// each other; the second lookup is served locally. Cache failures
// degrade to a direct fetch.
type ChallengeCache struct {
	db  *badger.DB
	src ChallengeSource
	ttl time.Duration
	log *logrus.Entry
}

// NewChallengeCache wraps src with a badger-backed cache.
func NewChallengeCache(db *badger.DB, src ChallengeSource, ttl time.Duration, log *logrus.Logger) *ChallengeCache {
	return &ChallengeCache{
		db:  db,
		src: src,
		ttl: ttl,
		log: log.WithField("component", "challenge-cache"),
	}
}

// FetchChallenge returns the cached challenge for the game id, or
// fetches and caches it.
func (c *ChallengeCache) FetchChallenge(ctx context.Context, gameID string) (*Challenge, error) {
	key := []byte(challengeKeyPrefix + gameID)

	var cached *Challenge
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			cached = &Challenge{}
			return json.Unmarshal(val, cached)
		})
	})
	switch {
	case err == nil:
		return cached, nil
	case !errors.Is(err, badger.ErrKeyNotFound):
		c.log.WithError(err).Warn("cache read failed, fetching directly")
	}

	ch, err := c.src.FetchChallenge(ctx, gameID)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(ch)
	if err != nil {
		return ch, nil
	}
	if err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	}); err != nil {
		c.log.WithError(err).Warn("cache write failed")
	}
	return ch, nil
}
