// Package connection keeps the upstream channel alive.
//
// A Manager dials through a ConnectFunc, reports state changes, and
// redials with exponential backoff when the channel is lost:
//
//	delay(n) = min(Initial * Multiplier^n, Max) + random(0, delay * Jitter)
//
// With the defaults the base delays are 1s, 2s, 4s, ... capped at 60s.
// The backoff resets after every successful dial. The same Backoff type
// paces fetch retries in the subscription registry.
package connection
