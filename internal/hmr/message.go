// Package hmr implements the live-reload protocol spoken over the
// websocket endpoint: message types, the subscriber broadcaster, and
// injection of the client script into served HTML.
package hmr

import "encoding/json"

// MessageType identifies a live-reload protocol message.
type MessageType string

const (
	// MessageTypeConnected greets a subscriber right after the
	// websocket handshake.
	MessageTypeConnected MessageType = "connected"

	// MessageTypeUpdate announces changed module paths the client can
	// apply without a page reload.
	MessageTypeUpdate MessageType = "update"

	// MessageTypeFullReload tells the client to reload the page.
	MessageTypeFullReload MessageType = "full-reload"
)

// Update names one changed module. Path is root-relative with a
// leading slash; Timestamp is unix milliseconds and doubles as a
// cache-busting query value on the client.
type Update struct {
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}

// Message is the wire format for all live-reload traffic. Updates is
// only present on update messages.
type Message struct {
	Type    MessageType `json:"type"`
	Updates []Update    `json:"updates,omitempty"`
}

// Encode marshals the message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Connected builds the handshake greeting.
func Connected() Message {
	return Message{Type: MessageTypeConnected}
}

// FullReload builds a message forcing a page reload.
func FullReload() Message {
	return Message{Type: MessageTypeFullReload}
}

// UpdatesFor builds an update message for the given changes.
func UpdatesFor(updates []Update) Message {
	return Message{Type: MessageTypeUpdate, Updates: updates}
}
