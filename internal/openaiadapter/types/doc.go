// Package types provides OpenAI API types for server-side request/response handling.
//
// The types are hand-written rather than generated or taken from the openai-go SDK:
//
//  1. SERVER-SIDE vs CLIENT-SIDE: The openai-go SDK is designed for making outbound
//     API calls TO OpenAI. This relay receives inbound requests FROM clients and
//     translates them TO the Foundry backend. The client-oriented design would add
//     unnecessary complexity for server-side JSON decoding.
//
//  2. SURFACE: The relay speaks a small, fixed subset of the protocol (chat
//     completions, legacy completions, embeddings, models). Generating the full
//     OpenAPI schema would pull in hundreds of unused types.
//
//  3. FIELD PATTERNS: Optional fields use standard Go pointers (*string, *int),
//     which work naturally with standard library JSON unmarshaling via
//     json.NewDecoder().
package types
