package server

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/zeusync/missionsim/internal/core/mission"
)

// Codec turns a snapshot into one websocket frame.
type Codec interface {
	Name() string
	// FrameType is websocket.TextMessage or websocket.BinaryMessage.
	FrameType() int
	Encode(snap mission.Snapshot) ([]byte, error)
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(snap mission.Snapshot) ([]byte, error) {
	return json.Marshal(snap)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(snap mission.Snapshot) ([]byte, error) {
	return msgpack.Marshal(&snap)
}

var codecs = map[string]Codec{
	"":        jsonCodec{},
	"json":    jsonCodec{},
	"msgpack": msgpackCodec{},
}

// CodecByName resolves the ?codec= query value; empty means JSON.
func CodecByName(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return nil, ErrUnknownCodec
	}
	return c, nil
}
