// Package llm provides LLM client implementations for the translation
// executors.
//
// The factory creates LLM clients based on provider configuration.
// Currently supports:
//   - Anthropic Claude
//
// Without an API key no client is created and translation runs in stub mode.
package llm
