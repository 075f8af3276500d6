// Package collector schedules scrapes. Each tick of a fixed-interval timer
// launches one goroutine per configured target; their metrics merge into a
// single sink with no cross-target ordering. There is no retry, backoff or
// circuit breaking — a failed scrape waits for the next tick like any other.
package collector
