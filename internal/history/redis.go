package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledgerd/internal/dberr"
)

const keyPrefix = "ledgerd:history:"

// KEYS[1] entries zset, KEYS[2] sequence counter; ARGV[1] encoded entry.
// Members are "<seq>:<json>" so equal payloads stay distinct.
var appendScript = redis.NewScript(`
local seq = redis.call("INCR", KEYS[2])
redis.call("ZADD", KEYS[1], seq, seq .. ":" .. ARGV[1])
return seq
`)

// RedisStore keeps each account's history in a sorted set scored by sequence.
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
	now     func() time.Time
}

// NewRedisStore builds a Redis-backed history store.
func NewRedisStore(rdb *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, timeout: timeout, now: time.Now}
}

func entriesKey(acct string) string { return keyPrefix + acct }

func seqKey(acct string) string { return keyPrefix + acct + ":seq" }

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Append allocates the next sequence and stores the entry in one script.
func (s *RedisStore) Append(ctx context.Context, e Entry) (Entry, error) {
	if err := validate(e); err != nil {
		return Entry{}, err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	e.Seq = 0
	payload, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("encode history entry: %w", err)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	seq, err := appendScript.Run(ctx, s.rdb, []string{entriesKey(e.Account), seqKey(e.Account)}, payload).Int64()
	if err != nil {
		return Entry{}, dberr.Wrap("history.append", err)
	}
	e.Seq = uint64(seq)
	return e, nil
}

// List reads one page by score range, so concurrent appends never shift it.
func (s *RedisStore) List(ctx context.Context, acct string, q Query) (Page, error) {
	limit := q.limit()
	rng := &redis.ZRangeBy{Count: int64(limit + 1)}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		members []string
		err     error
	)
	if q.Order == NewestFirst {
		rng.Min = "-inf"
		rng.Max = "+inf"
		if q.Cursor > 0 {
			rng.Max = "(" + strconv.FormatUint(q.Cursor, 10)
		}
		members, err = s.rdb.ZRevRangeByScore(ctx, entriesKey(acct), rng).Result()
	} else {
		rng.Min = "(" + strconv.FormatUint(q.Cursor, 10)
		rng.Max = "+inf"
		members, err = s.rdb.ZRangeByScore(ctx, entriesKey(acct), rng).Result()
	}
	if err != nil {
		return Page{}, dberr.Wrap("history.list", err)
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		e, err := decodeMember(m)
		if err != nil {
			return Page{}, dberr.Corrupt("history.list", err)
		}
		entries = append(entries, e)
	}
	return paginate(entries, limit), nil
}

func decodeMember(m string) (Entry, error) {
	rawSeq, payload, ok := strings.Cut(m, ":")
	if !ok {
		return Entry{}, fmt.Errorf("malformed history member")
	}
	seq, err := strconv.ParseUint(rawSeq, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("history sequence: %w", err)
	}
	var e Entry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return Entry{}, fmt.Errorf("history payload: %w", err)
	}
	e.Seq = seq
	return e, nil
}
