// Package openai adapts OpenAI-compatible embedding APIs (OpenAI, Ollama,
// LocalAI, vLLM) to the ai.Embedder contract. Inputs are head-truncated to
// the provider token budget and malformed vectors are repaired to the
// configured dimension.
package openai
