// Package security inspects the TLS certificates of HTTPS scrape targets so
// an operator can spot an expiring cert before scrapes start failing.
package security
