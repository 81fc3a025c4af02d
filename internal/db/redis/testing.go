package redis

import "github.com/redis/rueidis"

// NewStoreForTest wraps a (mock) rueidis client; used by driver and repository tests.
func NewStoreForTest(c rueidis.Client) *Store {
	return newStore(c)
}
