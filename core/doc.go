// Package core provides the Raven client and types for talking to the Raven
// generative-AI service.
//
// # Client
//
// The primary entry point is [Client], which owns the retrying request
// executor, timeout handling and a fluent builder API:
//
//	client := core.New(os.Getenv("RAVEN_API_KEY"),
//	    core.WithDefaultModel("raven-large"),
//	    core.WithTimeout(30*time.Second),
//	)
//
// # ChatBuilder
//
// [ChatBuilder] provides a fluent API for constructing chat requests:
//
//	resp, err := client.Chat("raven-large").
//	    System("You are a helpful assistant.").
//	    User("Hello!").
//	    Temperature(0.7).
//	    GetResponse(ctx)
//
// ChatBuilder is NOT thread-safe; each goroutine should build its own.
//
// # Streaming
//
// [ChatBuilder.Stream] returns a [ChatStream], a single-pass cursor over the
// live response:
//
//	stream, err := client.Chat(model).User("Tell me a story.").Stream(ctx)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for stream.Next() {
//	    chunk := stream.Current()
//	    // ...
//	}
//	if err := stream.Err(); err != nil {
//	    return err
//	}
//
// Collect, Text and Each are conveniences that drain the same cursor; a
// stream supports at most one consumer and cannot be rewound.
//
// # Errors
//
// Failures are classified into sentinel errors ([ErrAuthentication],
// [ErrRateLimited], [ErrTimeout], [ErrAborted], [ErrNetwork], [ErrStream],
// [ErrValidation], ...) wrapped in [APIError], so callers can branch with
// errors.Is and still inspect status, code and retry-after.
//
// # Retries
//
// Transient failures (408, 429, 5xx and connection faults) are retried with
// exponential backoff and jitter, honoring server retry-after hints. Retries
// stop once a streaming body has been handed to the consumer; mid-stream
// failures surface as [ErrStream] on the ChatStream.
package core
