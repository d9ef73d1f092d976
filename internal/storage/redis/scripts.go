package redis

const (
	// upsertUsageScript atomically writes a usage record and its index entry
	upsertUsageScript = `
local usage_key = KEYS[1]     -- focusforge:local:usageData:{hostname}
local index_key = KEYS[2]     -- focusforge:local:usageData:index

local hostname = ARGV[1]
local visits = ARGV[2]
local total_time_ms = ARGV[3]
local last_visit_at = ARGV[4]

redis.call('HSET', usage_key,
  'hostname', hostname,
  'visits', visits,
  'total_time_ms', total_time_ms,
  'last_visit_at', last_visit_at
)

-- Score by last visit so range pruning can use ZRANGEBYSCORE
redis.call('ZADD', index_key, tonumber(last_visit_at), hostname)

return 'OK'
`

	// deleteUsageBeforeScript removes every record whose last visit is older than the cutoff
	deleteUsageBeforeScript = `
local index_key = KEYS[1]     -- focusforge:local:usageData:index
local key_prefix = ARGV[1]    -- focusforge:local:usageData:
local cutoff = ARGV[2]

local hosts = redis.call('ZRANGEBYSCORE', index_key, '-inf', '(' .. cutoff)
for _, host in ipairs(hosts) do
  redis.call('DEL', key_prefix .. host)
end
if #hosts > 0 then
  redis.call('ZREMRANGEBYSCORE', index_key, '-inf', '(' .. cutoff)
end

return #hosts
`

	// clearUsageScript removes every usage record and the index
	clearUsageScript = `
local index_key = KEYS[1]     -- focusforge:local:usageData:index
local key_prefix = ARGV[1]    -- focusforge:local:usageData:

local hosts = redis.call('ZRANGE', index_key, 0, -1)
for _, host in ipairs(hosts) do
  redis.call('DEL', key_prefix .. host)
end
redis.call('DEL', index_key)

return #hosts
`
)
