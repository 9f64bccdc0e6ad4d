package redis

import goredis "github.com/redis/go-redis/v9"

// Message keys, in the order every script receives them.
const (
	keyVisible = iota // zset: id -> visible at (unix ms), non-deleted only
	keyBody           // hash: id -> body
	keySent           // zset: id -> sent at (unix ms)
	keyTries          // hash: id -> lease count
	keyFirst          // hash: id -> first claimed at (unix ms)
	keyReceipt        // hash: id -> current receipt handle
	keyHandles        // hash: receipt handle -> id, live handles only
	keyDeleted        // set: acknowledged ids awaiting Clean
	numKeys
)

var messageKeySuffixes = [numKeys]string{
	keyVisible: "visible",
	keyBody:    "body",
	keySent:    "sent",
	keyTries:   "tries",
	keyFirst:   "first",
	keyReceipt: "receipt",
	keyHandles: "handles",
	keyDeleted: "deleted",
}

// ARGV: now, visible until, receipt handle.
// Returns {id, body, sent, tries, first} or nil.
var leaseScript = goredis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, 1)
if #ids == 0 then
  return false
end
local id = ids[1]
local old = redis.call('HGET', KEYS[6], id)
if old then
  redis.call('HDEL', KEYS[7], old)
end
redis.call('ZADD', KEYS[1], ARGV[2], id)
local tries = redis.call('HINCRBY', KEYS[4], id, 1)
redis.call('HSETNX', KEYS[5], id, ARGV[1])
redis.call('HSET', KEYS[6], id, ARGV[3])
redis.call('HSET', KEYS[7], ARGV[3], id)
return {id, redis.call('HGET', KEYS[2], id), redis.call('ZSCORE', KEYS[3], id),
  tostring(tries), redis.call('HGET', KEYS[5], id)}
`)

// ARGV: receipt handle.
var ackScript = goredis.NewScript(`
local id = redis.call('HGET', KEYS[7], ARGV[1])
if not id then
  return 0
end
redis.call('HDEL', KEYS[7], ARGV[1])
redis.call('ZREM', KEYS[1], id)
redis.call('SADD', KEYS[8], id)
return 1
`)

// ARGV: receipt handle, visible until.
var touchScript = goredis.NewScript(`
local id = redis.call('HGET', KEYS[7], ARGV[1])
if not id then
  return 0
end
redis.call('ZADD', KEYS[1], ARGV[2], id)
return 1
`)

// ARGV: sent-before cutoff.
var cleanScript = goredis.NewScript(`
local seen = {}
local n = 0
local function drop(id)
  if seen[id] then
    return
  end
  seen[id] = true
  n = n + 1
  local h = redis.call('HGET', KEYS[6], id)
  if h then
    redis.call('HDEL', KEYS[7], h)
  end
  redis.call('ZREM', KEYS[1], id)
  redis.call('HDEL', KEYS[2], id)
  redis.call('ZREM', KEYS[3], id)
  redis.call('HDEL', KEYS[4], id)
  redis.call('HDEL', KEYS[5], id)
  redis.call('HDEL', KEYS[6], id)
  redis.call('SREM', KEYS[8], id)
end
for _, id in ipairs(redis.call('ZRANGEBYSCORE', KEYS[3], '-inf', '(' .. ARGV[1])) do
  drop(id)
end
for _, id in ipairs(redis.call('SMEMBERS', KEYS[8])) do
  drop(id)
end
return n
`)

// KEYS: settings, names. ARGV: url, name, encoded settings.
var insertScript = goredis.NewScript(`
if redis.call('HEXISTS', KEYS[1], ARGV[1]) == 1 or redis.call('HEXISTS', KEYS[2], ARGV[2]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], ARGV[1], ARGV[3])
redis.call('HSET', KEYS[2], ARGV[2], ARGV[1])
return 1
`)

// KEYS: settings, names. ARGV: url.
// The name entry is removed only while it still points at url.
var dropScript = goredis.NewScript(`
local raw = redis.call('HGET', KEYS[1], ARGV[1])
if not raw then
  return 0
end
redis.call('HDEL', KEYS[1], ARGV[1])
local name = cjson.decode(raw).name
if name and redis.call('HGET', KEYS[2], name) == ARGV[1] then
  redis.call('HDEL', KEYS[2], name)
end
return 1
`)
