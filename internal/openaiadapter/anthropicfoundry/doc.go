// Package anthropicfoundry adapts OpenAI chat completion requests to the
// Anthropic Messages API exposed by Azure AI Foundry resources.
//
// The adapter handles:
//
//   - Routing: every request carries its own resolved backend coordinates
//     (resource, credential, model). The Anthropic client is rebuilt per
//     request from those coordinates and holds no cross-request state, which
//     is what lets one relay instance serve many tenants.
//
//   - Message transformation: system messages are hoisted into Anthropic's
//     System field, joined in order. Every other message becomes a single
//     text content block with its role passed through untouched, so the
//     backend rejects what it does not accept.
//
//   - Tool calling: Foundry deployments surface tool invocations inside the
//     assistant text rather than as protocol blocks. The toolbridge package
//     recovers them; this adapter folds the result into OpenAI tool_calls
//     with the residual text as content.
//
//   - Streaming: the upstream stream is accumulated into one complete
//     message and replayed as a coarse content chunk plus a terminal chunk.
//     Clients observe a valid chunk stream, just without token granularity.
//
//   - Errors: backend failures are rendered as protocol-shaped completions
//     carrying the error text, matching what thin OpenAI clients expect
//     from this endpoint family.
//
// # Adapters
//
// CreateChatCompletionAdapter: OpenAI CreateChatCompletion → Anthropic Messages on Foundry
package anthropicfoundry
