// Package scraper fetches one httpd status page per target and turns each
// response into metric samples via the status parser. Outcome classification
// is strict: only a 2xx response is parsed; transport failures and error
// statuses are reported to the events recorder and produce an empty Result.
//
// Authentication (API key, bearer token, basic auth) is handled by the
// authRoundTripper so individual scrapes never deal with credentials.
package scraper
