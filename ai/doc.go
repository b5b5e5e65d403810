// Package ai defines the embedding provider contract and its configuration.
// Concrete adapters live in subpackages: openai for OpenAI-compatible APIs
// and mock for deterministic test doubles.
package ai
