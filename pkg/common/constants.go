package common

const (
	RedisStreamTradeEvents = "orb.trade.events"

	RedisStreamGroup    = "notification-group"
	RedisStreamConsumer = "notification-consumer"

	// RedisKeyOpeningRange holds a hash of symbol -> range for one account and session date.
	RedisKeyOpeningRange = "orb:range:%s:%d"
	// RedisKeyScanLock guards a single scan per date across instances.
	RedisKeyScanLock = "orb:scan:lock:%s"

	StrategyTag = "orb-5min-max"
)
