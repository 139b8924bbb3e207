package types

import (
	"encoding/json"
	"errors"
	"fmt"

	pub "github.com/DoyleJ11/pubcrawl-backend/pkg/types"
)

// ClientMessage is a frame read from a game session. Sessions are
// receive-only apart from keepalive.
type ClientMessage struct {
	Type pub.MessageType `json:"type"`
}

func ParseClientMessage(data []byte) (ClientMessage, error) {
	var cm ClientMessage
	if err := json.Unmarshal(data, &cm); err != nil {
		return ClientMessage{}, fmt.Errorf("bad json: %w", err)
	}
	if cm.Type == "" {
		return ClientMessage{}, errors.New("missing type")
	}
	return cm, nil
}
