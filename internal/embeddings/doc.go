// Package embeddings turns text into fixed-width vectors.
//
// Two providers are available: a local FastEmbed ONNX model (requires cgo)
// and a Text Embeddings Inference service reached over HTTP. NewProvider
// selects one from configuration.
package embeddings
