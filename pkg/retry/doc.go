// Package retry provides bounded retry with exponential backoff.
//
// Device resolution over UDP is unreliable: a probe can be lost, or the
// remote may still be booting. Opening a device therefore makes a fixed
// number of attempts and waits between them:
//
//  1. Initial delay: 50 milliseconds
//  2. Exponential increase: 100ms, 200ms, 400ms, ...
//  3. Maximum delay: 2 seconds
//
// # Jitter
//
// When many hosts probe the same device after a power cycle, jitter
// spreads the attempts:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package retry
