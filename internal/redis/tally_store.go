package redis

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// TallyStore keeps one sorted set per poll: member = option UUID,
// score = live vote count. ZINCRBY makes each step atomic; a vote change
// is two independent steps (decrement old, then increment new), so the
// pair is not atomic as a whole.
type TallyStore struct {
	rdb *goredis.Client
}

func NewTallyStore(rdb *goredis.Client) *TallyStore {
	return &TallyStore{rdb: rdb}
}

// Increment adds one vote to the option's tally and returns the new count.
func (s *TallyStore) Increment(ctx context.Context, pollID, optionID uuid.UUID) (int64, error) {
	return s.incrBy(ctx, pollID, optionID, 1)
}

// Decrement removes one vote from the option's tally and returns the new count.
func (s *TallyStore) Decrement(ctx context.Context, pollID, optionID uuid.UUID) (int64, error) {
	return s.incrBy(ctx, pollID, optionID, -1)
}

func (s *TallyStore) incrBy(ctx context.Context, pollID, optionID uuid.UUID, delta float64) (int64, error) {
	score, err := s.rdb.ZIncrBy(ctx, tallyKey(pollID), delta, optionID.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to adjust tally: %w", err)
	}
	return int64(math.Round(score)), nil
}

// Snapshot returns the current count for every option that has received
// at least one vote on the poll.
func (s *TallyStore) Snapshot(ctx context.Context, pollID uuid.UUID) (map[uuid.UUID]int64, error) {
	members, err := s.rdb.ZRangeWithScores(ctx, tallyKey(pollID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read tally snapshot: %w", err)
	}

	counts := make(map[uuid.UUID]int64, len(members))
	for _, member := range members {
		raw, ok := member.Member.(string)
		if !ok {
			continue
		}
		optionID, err := uuid.Parse(raw)
		if err != nil {
			// corrupt member, skip
			continue
		}
		counts[optionID] = int64(math.Round(member.Score))
	}
	return counts, nil
}

func tallyKey(pollID uuid.UUID) string {
	return "poll:" + pollID.String() + ":tally"
}
