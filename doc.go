// Package watsonx defines the domain types shared by the watsonx.ai client
// packages: conversation messages, content blocks, tools, streaming events,
// and the pull-based [Stream] interface that service clients implement.
//
// Service clients live in subpackages (chat, embeddings, tokenize, forecast,
// detect, cos, extraction). They share authentication (iam) and HTTP plumbing
// (transport). The agent package runs the tool-call dispatch loop.
package watsonx
