package domain

import "errors"

// ErrMissingAPIKey is returned by LLM integrations when no API key is
// configured.
var ErrMissingAPIKey = errors.New("llm: api key is not configured")
