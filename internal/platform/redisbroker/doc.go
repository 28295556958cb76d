// Package redisbroker provides the Redis-backed messaging used by the reminder
// pipeline: a delayed-delivery queue built on a sorted set scored by delivery
// time, and a thin publish/subscribe wrapper for real-time notifications.
package redisbroker
