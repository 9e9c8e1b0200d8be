package dispatcher

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Gate suppresses concurrent duplicate dispatches for the same submission.
// The DB claim makes the ledger row unique, but two racing requests can both
// read `sending` and reach the provider; SetNX closes that window. Redis
// being down fails open: correctness still rests on the claim plus the
// `sent` short-circuit.
type Gate struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewGate(rdb *redis.Client, ttl time.Duration) *Gate {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Gate{rdb: rdb, ttl: ttl}
}

func (g *Gate) key(agentID int64, submissionID string) string {
	return fmt.Sprintf("send:inflight:%d:%s", agentID, submissionID)
}

// TryAcquire returns true when this caller is the only in-flight dispatcher
// for the submission.
func (g *Gate) TryAcquire(ctx context.Context, agentID int64, submissionID string) bool {
	ok, err := g.rdb.SetNX(ctx, g.key(agentID, submissionID), 1, g.ttl).Result()
	if err != nil {
		return true
	}
	return ok
}

func (g *Gate) Release(ctx context.Context, agentID int64, submissionID string) {
	_ = g.rdb.Del(ctx, g.key(agentID, submissionID)).Err()
}
