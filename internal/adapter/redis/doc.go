// Package redis implements the event broker on Redis Streams.
//
// Each topic maps to one stream. StreamProducer appends entries carrying the
// message key and payload; StreamConsumer reads them through a consumer group so
// several server instances share the work. All commands pass through a
// CircuitBreakerHook that fails fast while Redis is unavailable.
package redis
