package ws

import "sort"

// inboundType describes a frame the client may send.
type inboundType struct {
	build func() Message
	// preJoin frames are accepted before the connection has joined.
	preJoin bool
}

var inboundTypes = map[string]inboundType{}

func init() {
	registerInbound(func() Message { return &MessageJoin{} }, true)
	registerInbound(func() Message { return &MessagePing{} }, true)
	registerInbound(func() Message { return &MessagePong{} }, true)
}

func registerInbound(build func() Message, preJoin bool) {
	inboundTypes[build().GetType()] = inboundType{build: build, preJoin: preJoin}
}

// InboundTypes lists the frame types a client may send, sorted.
func InboundTypes() []string {
	names := make([]string, 0, len(inboundTypes))
	for name := range inboundTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func allowedBeforeJoin(msgType string) bool {
	return inboundTypes[msgType].preJoin
}
