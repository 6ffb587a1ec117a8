package chat

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/r3labs/sse/v2"
)

const maxEventSize = 1 << 20

// structuredBody is the strict-JSON response shape.
type structuredBody struct {
	Error     string   `json:"error"`
	Diagnosis string   `json:"diagnosis"`
	NextSteps []string `json:"nextSteps"`
}

// streamChunk is one decoded SSE data payload.
type streamChunk struct {
	Type     string `json:"type"`
	Delta    string `json:"delta"`
	ToolName string `json:"toolName"`
}

// DecodeReply decodes a 2xx response body: strict JSON first, then an SSE
// stream of text-delta and tool-input-start events.
func DecodeReply(raw []byte) (*Reply, error) {
	if reply, ok := decodeStructured(raw); ok {
		return reply, nil
	}
	return decodeStream(raw)
}

func decodeStructured(raw []byte) (*Reply, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var metadata map[string]any
	if err := dec.Decode(&metadata); err != nil {
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, false
	}

	var body structuredBody
	// Already known to be a valid object; field extraction cannot fail in a
	// way the metadata map would not also have.
	_ = json.Unmarshal(raw, &body)

	if strings.TrimSpace(body.Error) != "" {
		return &Reply{
			Kind:     ReplyError,
			Text:     body.Error,
			Metadata: metadata,
			Err:      body.Error,
		}, true
	}

	return &Reply{
		Kind:     ReplyStructured,
		Text:     renderStructuredText(body),
		Metadata: metadata,
	}, true
}

func renderStructuredText(body structuredBody) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(body.Diagnosis))
	for _, step := range body.NextSteps {
		step = strings.TrimSpace(step)
		if step == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(step)
	}
	return sb.String()
}

func decodeStream(raw []byte) (*Reply, error) {
	reader := sse.NewEventStreamReader(bytes.NewReader(raw), maxEventSize)

	var text strings.Builder
	var toolCalls []string
	seenTools := make(map[string]struct{})
	sawChunk := false

	for {
		event, err := reader.ReadEvent()
		if err == io.EOF {
			break
		}
		if err != nil {
			if !sawChunk {
				return nil, fmt.Errorf("chat: decode stream: %w", err)
			}
			break
		}

		for _, payload := range eventDataPayloads(event) {
			if payload == "[DONE]" {
				continue
			}
			var chunk streamChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			switch chunk.Type {
			case "text-delta":
				text.WriteString(chunk.Delta)
				sawChunk = true
			case "tool-input-start":
				name := strings.TrimSpace(chunk.ToolName)
				if name == "" {
					continue
				}
				sawChunk = true
				if _, ok := seenTools[name]; ok {
					continue
				}
				seenTools[name] = struct{}{}
				toolCalls = append(toolCalls, name)
			}
		}
	}

	if !sawChunk {
		return nil, errors.New("chat: response is neither JSON nor an event stream")
	}

	return &Reply{
		Kind:      ReplyStream,
		Text:      text.String(),
		ToolCalls: toolCalls,
	}, nil
}

// eventDataPayloads extracts the data field lines from one raw SSE event.
func eventDataPayloads(event []byte) []string {
	var out []string
	for _, line := range bytes.Split(event, []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		rest, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		payload := strings.TrimSpace(string(rest))
		if payload != "" {
			out = append(out, payload)
		}
	}
	return out
}

func errorReplyFromBody(status string, raw []byte) *Reply {
	reply := &Reply{Kind: ReplyError}

	var metadata map[string]any
	if err := json.Unmarshal(raw, &metadata); err == nil {
		reply.Metadata = metadata
		if msg, ok := metadata["error"].(string); ok && strings.TrimSpace(msg) != "" {
			reply.Err = msg
			reply.Text = msg
			return reply
		}
	}

	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		msg = status
	}
	reply.Err = msg
	reply.Text = msg
	return reply
}
