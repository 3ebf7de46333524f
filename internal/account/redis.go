package account

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/ledgerd/internal/dberr"
)

const keyPrefix = "ledgerd:account:"

var errNonNumericBalance = errors.New("stored balance is not numeric")

const (
	statusOK             = "ok"
	statusNotFound       = "not_found"
	statusCorrupt        = "corrupt"
	statusOverflow       = "overflow"
	statusDuplicate      = "duplicate"
	statusSourceNotFound = "source_not_found"
	statusTargetNotFound = "target_not_found"
	statusInsufficient   = "insufficient_funds"
)

// KEYS[1] account hash; ARGV name, balance, digest, salt, created_at.
var createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1], "name", ARGV[1], "balance", ARGV[2], "digest", ARGV[3], "salt", ARGV[4], "created_at", ARGV[5])
return 1
`)

// KEYS[1] account hash; ARGV amount, max balance.
var depositScript = redis.NewScript(`
local balance = redis.call("HGET", KEYS[1], "balance")
if not balance then
  return {"not_found"}
end
balance = tonumber(balance)
if not balance then
  return {"corrupt"}
end
local amount = tonumber(ARGV[1])
if balance + amount > tonumber(ARGV[2]) then
  return {"overflow"}
end
return {"ok", redis.call("HINCRBY", KEYS[1], "balance", amount)}
`)

// KEYS[1] source hash, KEYS[2] target hash, optional KEYS[3] idempotency key;
// ARGV amount, max balance, idempotency value, idempotency ttl (ms).
// No branch other than the last one writes anything.
var moveScript = redis.NewScript(`
if #KEYS == 3 and redis.call("EXISTS", KEYS[3]) == 1 then
  return {"duplicate"}
end
local amount = tonumber(ARGV[1])
local source = redis.call("HGET", KEYS[1], "balance")
if not source then
  return {"source_not_found"}
end
source = tonumber(source)
if not source then
  return {"corrupt"}
end
if source < amount then
  return {"insufficient_funds"}
end
local target = redis.call("HGET", KEYS[2], "balance")
if not target then
  return {"target_not_found"}
end
target = tonumber(target)
if not target then
  return {"corrupt"}
end
if target + amount > tonumber(ARGV[2]) then
  return {"overflow"}
end
local sourceAfter = redis.call("HINCRBY", KEYS[1], "balance", -amount)
local targetAfter = redis.call("HINCRBY", KEYS[2], "balance", amount)
if #KEYS == 3 then
  redis.call("SET", KEYS[3], ARGV[3], "PX", ARGV[4])
end
return {"ok", sourceAfter, targetAfter}
`)

// RedisStore keeps accounts as Redis hashes and performs every mutation as a
// single Lua script, relying on Redis executing scripts one at a time.
type RedisStore struct {
	rdb     *redis.Client
	timeout time.Duration
	now     func() time.Time
}

// NewRedisStore builds a Redis-backed account store. timeout bounds every
// round-trip; zero disables the per-call deadline.
func NewRedisStore(rdb *redis.Client, timeout time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, timeout: timeout, now: time.Now}
}

func accountKey(key string) string { return keyPrefix + key }

// Transfer ids are chosen by clients, so each source account has its own
// id space.
func idempotencyKey(source, key string) string {
	return keyPrefix + "transfer:" + source + ":" + key
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Create atomically creates the account unless the key is already bound.
func (s *RedisStore) Create(ctx context.Context, acct NewAccount) error {
	if acct.Key == "" {
		return ErrInvalidKey
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	created, err := createScript.Run(ctx, s.rdb, []string{accountKey(acct.Key)},
		acct.Name,
		uint64(acct.InitialBalance),
		hex.EncodeToString(acct.Digest),
		hex.EncodeToString(acct.Salt),
		s.now().UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return dberr.Wrap("account.create", err)
	}
	if created == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Get reads the full account record.
func (s *RedisStore) Get(ctx context.Context, key string) (Account, error) {
	if key == "" {
		return Account{}, ErrNotFound
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, accountKey(key)).Result()
	if err != nil {
		return Account{}, dberr.Wrap("account.get", err)
	}
	if len(fields) == 0 {
		return Account{}, ErrNotFound
	}
	return decodeAccount(key, fields)
}

// Deposit credits the account, refusing to overflow.
func (s *RedisStore) Deposit(ctx context.Context, key string, amount Balance) (Balance, error) {
	if key == "" {
		return 0, ErrNotFound
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	res, err := depositScript.Run(ctx, s.rdb, []string{accountKey(key)}, uint64(amount), uint64(MaxBalance)).Slice()
	if err != nil {
		return 0, dberr.Wrap("account.deposit", err)
	}
	status, err := scriptStatus(res)
	if err != nil {
		return 0, dberr.Corrupt("account.deposit", err)
	}
	switch status {
	case statusOK:
		balance, err := scriptBalance(res, 1)
		if err != nil {
			return 0, dberr.Corrupt("account.deposit", err)
		}
		return balance, nil
	case statusNotFound:
		return 0, ErrNotFound
	case statusOverflow:
		return 0, ErrOverflow
	case statusCorrupt:
		return 0, dberr.Corrupt("account.deposit", errNonNumericBalance)
	default:
		return 0, dberr.Corrupt("account.deposit", fmt.Errorf("script status %q", status))
	}
}

// Move checks and applies a transfer in one script execution.
func (s *RedisStore) Move(ctx context.Context, m Movement) (MoveResult, error) {
	if err := validateMovement(m); err != nil {
		return MoveResult{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	keys := []string{accountKey(m.Source), accountKey(m.Target)}
	ttl := int64(0)
	if m.IdempotencyKey != "" {
		keys = append(keys, idempotencyKey(m.Source, m.IdempotencyKey))
		ttl = m.IdempotencyTTL.Milliseconds()
		if ttl <= 0 {
			ttl = (24 * time.Hour).Milliseconds()
		}
	}
	marker := fmt.Sprintf("%s>%s:%d", m.Source, m.Target, m.Amount)

	res, err := moveScript.Run(ctx, s.rdb, keys, uint64(m.Amount), uint64(MaxBalance), marker, ttl).Slice()
	if err != nil {
		return MoveResult{}, dberr.Wrap("account.move", err)
	}
	status, err := scriptStatus(res)
	if err != nil {
		return MoveResult{}, dberr.Corrupt("account.move", err)
	}

	switch status {
	case statusOK:
		source, err := scriptBalance(res, 1)
		if err != nil {
			return MoveResult{}, dberr.Corrupt("account.move", err)
		}
		target, err := scriptBalance(res, 2)
		if err != nil {
			return MoveResult{}, dberr.Corrupt("account.move", err)
		}
		return MoveResult{SourceBalance: source, TargetBalance: target}, nil
	case statusDuplicate:
		return MoveResult{}, ErrDuplicateTransfer
	case statusSourceNotFound:
		return MoveResult{}, ErrSourceNotFound
	case statusTargetNotFound:
		return MoveResult{}, ErrTargetNotFound
	case statusInsufficient:
		return MoveResult{}, ErrInsufficientFunds
	case statusOverflow:
		return MoveResult{}, ErrOverflow
	case statusCorrupt:
		return MoveResult{}, dberr.Corrupt("account.move", errNonNumericBalance)
	default:
		return MoveResult{}, dberr.Corrupt("account.move", fmt.Errorf("script status %q", status))
	}
}

func scriptStatus(res []any) (string, error) {
	if len(res) == 0 {
		return "", fmt.Errorf("empty script reply")
	}
	status, ok := res[0].(string)
	if !ok {
		return "", fmt.Errorf("unexpected status type %T", res[0])
	}
	return status, nil
}

func scriptBalance(res []any, idx int) (Balance, error) {
	if len(res) <= idx {
		return 0, fmt.Errorf("missing balance at %d", idx)
	}
	n, ok := res[idx].(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected balance type %T", res[idx])
	}
	if n < 0 || n > int64(MaxBalance) {
		return 0, fmt.Errorf("balance %d out of range", n)
	}
	return Balance(n), nil
}

func decodeAccount(key string, fields map[string]string) (Account, error) {
	balance, err := strconv.ParseUint(fields["balance"], 10, 32)
	if err != nil {
		return Account{}, dberr.Corrupt("account.get", fmt.Errorf("balance: %w", err))
	}
	digest, err := hex.DecodeString(fields["digest"])
	if err != nil {
		return Account{}, dberr.Corrupt("account.get", fmt.Errorf("digest: %w", err))
	}
	salt, err := hex.DecodeString(fields["salt"])
	if err != nil {
		return Account{}, dberr.Corrupt("account.get", fmt.Errorf("salt: %w", err))
	}
	acct := Account{
		Key:     key,
		Name:    fields["name"],
		Balance: Balance(balance),
		Digest:  digest,
		Salt:    salt,
	}
	if v := fields["created_at"]; v != "" {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			acct.CreatedAt = ts
		}
	}
	return acct, nil
}
