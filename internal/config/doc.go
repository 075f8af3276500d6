// Package config loads, validates and hot-reloads the agent's YAML
// configuration. Validation is strict about targets: every endpoint must be
// an absolute http(s) URL and every target ID unique, so a misconfigured
// target fails at startup instead of producing per-tick errors. Secrets
// (API keys, tokens, passwords) are never stored in the file itself — the
// config names environment variables and the accessors resolve them.
package config
