package types

import "github.com/DoyleJ11/pubcrawl-backend/internal/engine"

type MessageType string

// Server -> Client
const (
	MsgGameStateChanged MessageType = "GAME_STATE_CHANGED"
	MsgEventActivated   MessageType = "EVENT_ACTIVATED"
	MsgEventEnded       MessageType = "EVENT_ENDED"
	MsgGameCompleted    MessageType = "GAME_COMPLETED"
	MsgPong             MessageType = "PONG"
	MsgError            MessageType = "ERROR"
)

// Client -> Server
const (
	MsgPing MessageType = "PING"
)

// ServerMessage is every frame pushed to a game session.
//
//	GAME_STATE_CHANGED: gameCode, game
//	EVENT_ACTIVATED:    gameCode, eventId, title
//	EVENT_ENDED:        gameCode, eventId, title
//	GAME_COMPLETED:     gameCode, game
//	PONG:               -
//	ERROR:              error
type ServerMessage struct {
	Type     MessageType `json:"type"`
	GameCode string      `json:"gameCode,omitempty"`
	Game     *GameView   `json:"game,omitempty"`
	EventID  string      `json:"eventId,omitempty"`
	Title    string      `json:"title,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func GameStateChanged(g engine.Game) ServerMessage {
	view := Snapshot(g)
	return ServerMessage{Type: MsgGameStateChanged, GameCode: string(g.Code), Game: &view}
}

func EventActivated(code engine.Code, eventID, title string) ServerMessage {
	return ServerMessage{Type: MsgEventActivated, GameCode: string(code), EventID: eventID, Title: title}
}

func EventEnded(code engine.Code, eventID, title string) ServerMessage {
	return ServerMessage{Type: MsgEventEnded, GameCode: string(code), EventID: eventID, Title: title}
}

func GameCompleted(g engine.Game) ServerMessage {
	view := Snapshot(g)
	return ServerMessage{Type: MsgGameCompleted, GameCode: string(g.Code), Game: &view}
}

func Pong() ServerMessage { return ServerMessage{Type: MsgPong} }

func Error(msg string) ServerMessage { return ServerMessage{Type: MsgError, Error: msg} }
