// Package redis stores castore entries in Redis.
//
// Redis has no per-key revision counter, so one is simulated: every entry
// lives in two hash fields (value and modification index) and a sorted set
// indexes keys for prefix listing. All reads and writes run as Lua scripts,
// which Redis executes atomically; that is what makes CAS and Txn safe.
//
//	{<ns>}:val  hash  key -> value
//	{<ns>}:mod  hash  key -> modification index
//	{<ns>}:idx  zset  key (score 0, ordered lexicographically)
//	{<ns>}:seq  string counter feeding modification indexes
//
// The hash tag keeps all four keys in one Cluster slot.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/castore/backend"
)

const DefaultNamespace = "castore"

var ErrNilClient = errors.New("redis backend: nil client")

var (
	getScript = goredis.NewScript(`
local v = redis.call('HGET', KEYS[1], ARGV[1])
if not v then return false end
return {v, redis.call('HGET', KEYS[2], ARGV[1])}
`)

	listScript = goredis.NewScript(`
local ks = redis.call('ZRANGEBYLEX', KEYS[3], ARGV[1], ARGV[2])
local out = {}
for _, k in ipairs(ks) do
  local v = redis.call('HGET', KEYS[1], k)
  if v then
    out[#out+1] = k
    out[#out+1] = v
    out[#out+1] = redis.call('HGET', KEYS[2], k)
  end
end
return out
`)

	casScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[2], ARGV[1])
local want = tonumber(ARGV[3])
if cur then
  if tonumber(cur) ~= want then return 0 end
elseif want ~= 0 then
  return 0
end
local m = redis.call('INCR', KEYS[4])
redis.call('HSET', KEYS[1], ARGV[1], ARGV[2])
redis.call('HSET', KEYS[2], ARGV[1], m)
redis.call('ZADD', KEYS[3], 0, ARGV[1])
return 1
`)

	// ARGV holds (verb, key, value) triples.
	txnScript = goredis.NewScript(`
local n = 0
for i = 1, #ARGV, 3 do
  local k = ARGV[i+1]
  if ARGV[i] == 'set' then
    local m = redis.call('INCR', KEYS[4])
    redis.call('HSET', KEYS[1], k, ARGV[i+2])
    redis.call('HSET', KEYS[2], k, m)
    redis.call('ZADD', KEYS[3], 0, k)
  else
    redis.call('HDEL', KEYS[1], k)
    redis.call('HDEL', KEYS[2], k)
    redis.call('ZREM', KEYS[3], k)
  end
  n = n + 1
end
return n
`)
)

type Redis struct {
	rdb         goredis.UniversalClient
	closeClient bool
	keys        []string // val, mod, idx, seq
}

var _ backend.Backend = (*Redis)(nil)

type Config struct {
	Client      goredis.UniversalClient
	Namespace   string // "" => DefaultNamespace
	CloseClient bool   // set true only if this backend exclusively owns the client
}

func New(cfg Config) (*Redis, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	tag := "{" + ns + "}"
	return &Redis{
		rdb:         cfg.Client,
		closeClient: cfg.CloseClient,
		keys:        []string{tag + ":val", tag + ":mod", tag + ":idx", tag + ":seq"},
	}, nil
}

func (r *Redis) Name() string { return "redis" }

func (r *Redis) Get(ctx context.Context, key string) (*backend.Entry, error) {
	res, err := getScript.Run(ctx, r.rdb, r.keys, key).Slice()
	if err == goredis.Nil {
		return nil, nil // miss
	}
	if err != nil {
		return nil, err // transport/server error
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("redis backend: get %q: unexpected reply length %d", key, len(res))
	}
	mod, err := parseMod(res[1])
	if err != nil {
		return nil, fmt.Errorf("redis backend: get %q: %w", key, err)
	}
	return &backend.Entry{Key: key, Value: toBytes(res[0]), ModIndex: mod}, nil
}

func (r *Redis) List(ctx context.Context, prefix string) ([]backend.Entry, error) {
	lo, hi := lexRange(prefix)
	res, err := listScript.Run(ctx, r.rdb, r.keys, lo, hi).Slice()
	if err != nil && err != goredis.Nil {
		return nil, err
	}
	out := make([]backend.Entry, 0, len(res)/3)
	for i := 0; i+2 < len(res); i += 3 {
		mod, err := parseMod(res[i+2])
		if err != nil {
			return nil, fmt.Errorf("redis backend: list %q: %w", prefix, err)
		}
		out = append(out, backend.Entry{
			Key:      string(toBytes(res[i])),
			Value:    toBytes(res[i+1]),
			ModIndex: mod,
		})
	}
	return out, nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	lo, hi := lexRange(prefix)
	ks, err := r.rdb.ZRangeByLex(ctx, r.keys[2], &goredis.ZRangeBy{Min: lo, Max: hi}).Result()
	if err != nil {
		return nil, err
	}
	if ks == nil {
		ks = []string{}
	}
	return ks, nil
}

func (r *Redis) CAS(ctx context.Context, key string, value []byte, modIndex uint64) (bool, error) {
	n, err := casScript.Run(ctx, r.rdb, r.keys, key, value, strconv.FormatUint(modIndex, 10)).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Redis) Txn(ctx context.Context, ops []backend.Op) error {
	if err := backend.CheckOps(ops); err != nil {
		return err
	}
	if len(ops) == 0 {
		return nil
	}
	args := make([]any, 0, len(ops)*3)
	for _, op := range ops {
		v := op.Value
		if v == nil {
			v = []byte{}
		}
		args = append(args, op.Verb.String(), op.Key, v)
	}
	return txnScript.Run(ctx, r.rdb, r.keys, args...).Err()
}

// Close releases the underlying redis client only when this backend owns it.
// Safe to call multiple times; repeated calls become no-ops.
func (r *Redis) Close(context.Context) error {
	if r.closeClient {
		if err := r.rdb.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
	}
	return nil
}

// lexRange bounds ZRANGEBYLEX to members starting with prefix.
func lexRange(prefix string) (string, string) {
	if prefix == "" {
		return "-", "+"
	}
	return "[" + prefix, "[" + prefix + "\xff"
}

func parseMod(v any) (uint64, error) {
	switch vv := v.(type) {
	case int64:
		return uint64(vv), nil
	case nil:
		return 0, errors.New("missing modification index")
	default:
		u, err := strconv.ParseUint(string(toBytes(vv)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("bad modification index: %w", err)
		}
		return u, nil
	}
}

func toBytes(v any) []byte {
	switch vv := v.(type) {
	case string:
		return []byte(vv)
	case []byte:
		return vv
	case nil:
		return nil
	default:
		return []byte(fmt.Sprint(vv))
	}
}
