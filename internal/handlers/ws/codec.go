package ws

import (
	"bytes"
	"compress/gzip"
	"io"

	"github.com/goccy/go-json"
	"github.com/gofiber/websocket/v2"
	"github.com/noteduco342/om-relay/internal/realtime"
	"github.com/vmihailenco/msgpack/v5"
)

// Codec turns outbound events into websocket frames.
type Codec interface {
	Encode(realtime.Event) (frameType int, data []byte, err error)
	Name() string
}

// JSONCodec writes text frames. Frames larger than GzipThreshold are
// gzip-compressed into binary frames when the client opted in.
type JSONCodec struct {
	Gzip          bool
	GzipThreshold int
}

func (c JSONCodec) Name() string { return "json" }

func (c JSONCodec) Encode(e realtime.Event) (int, []byte, error) {
	data, err := json.Marshal(realtime.NewFrame(e))
	if err != nil {
		return 0, nil, err
	}
	if c.Gzip && c.GzipThreshold > 0 && len(data) > c.GzipThreshold {
		compressed, err := compress(data)
		if err == nil && len(compressed) < len(data) {
			return websocket.BinaryMessage, compressed, nil
		}
	}
	return websocket.TextMessage, data, nil
}

// MsgpackCodec writes binary msgpack frames keyed by the same field names
// as the JSON encoding.
type MsgpackCodec struct{}

func (MsgpackCodec) Name() string { return "msgpack" }

func (MsgpackCodec) Encode(e realtime.Event) (int, []byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetOmitEmpty(true)
	if err := enc.Encode(realtime.NewFrame(e)); err != nil {
		return 0, nil, err
	}
	return websocket.BinaryMessage, buf.Bytes(), nil
}

// NewCodec picks a codec from the connection's query parameters.
func NewCodec(name string, gzipEnabled bool, gzipThreshold int) Codec {
	if name == "msgpack" {
		return MsgpackCodec{}
	}
	return JSONCodec{Gzip: gzipEnabled, GzipThreshold: gzipThreshold}
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)

	if _, err := gzipWriter.Write(data); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecompressMessage inflates a gzip-compressed inbound frame.
func DecompressMessage(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}
