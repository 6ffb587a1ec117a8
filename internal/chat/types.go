package chat

import (
	"fmt"
	"strings"
)

// Message is one turn of a conversation sent to the target service.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one conversation delivered to the chat endpoint. Fixtures, when
// non-nil, are passed through to the service in place of live data.
type Request struct {
	Messages []Message      `json:"messages"`
	Fixtures map[string]any `json:"fixtures,omitempty"`
}

// ReplyKind tags the decoded response shape.
type ReplyKind int

const (
	// ReplyStructured is a parsed JSON object with diagnosis/nextSteps.
	ReplyStructured ReplyKind = iota
	// ReplyStream is text assembled from a server-sent-event stream.
	ReplyStream
	// ReplyError is a response the service itself flagged as an error
	// (an error field, or a non-2xx status below 500).
	ReplyError
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyStructured:
		return "structured"
	case ReplyStream:
		return "stream"
	case ReplyError:
		return "error"
	default:
		return fmt.Sprintf("ReplyKind(%d)", int(k))
	}
}

// Reply is the normalized chat response. Exactly one decoding path produces
// it; callers switch on Kind.
type Reply struct {
	Kind ReplyKind

	// Text is the response rendered as plain text: the diagnosis plus next
	// steps for structured replies, the concatenated deltas for streams,
	// the error message for error replies.
	Text string

	// Metadata is the parsed JSON body. Set for structured and error
	// replies decoded from JSON.
	Metadata map[string]any

	// ToolCalls lists distinct tool names observed in a stream, in order
	// of first occurrence.
	ToolCalls []string

	// Err is the service-reported error for ReplyError.
	Err string
}

// APIError is a transport-level failure: a 5xx or 429 that survived all
// retries.
type APIError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *APIError) Error() string {
	if e == nil {
		return "chat: api error <nil>"
	}
	msg := strings.TrimSpace(string(e.Body))
	if msg != "" {
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return fmt.Sprintf("chat: api error (%s): %s", e.Status, msg)
	}
	return fmt.Sprintf("chat: api error (%s)", e.Status)
}
