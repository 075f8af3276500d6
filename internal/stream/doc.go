// Package stream broadcasts scrape batches to WebSocket clients. Delivery is
// best-effort: the hub never blocks the scrape path, and a client that cannot
// keep up is disconnected rather than buffered without bound.
package stream
