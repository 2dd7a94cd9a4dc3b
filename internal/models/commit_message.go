package models

// CommitMessage is the notification published after a record is appended
// to the chain. Used across the gateway, messaging, and engine layers.
type CommitMessage struct {
	RequestID string `json:"request_id"`
	Type      string `json:"type"`
	Message   string `json:"message"`
	User      string `json:"user"`
	Hash      string `json:"hash"`
	Prev      string `json:"prev"`
	Timestamp string `json:"timestamp"` // RFC3339Nano, as recorded in the chain
}
