// internal/stomp/heartbeat.go
package stomp

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// HeartBeat é o par cx,cy do header heart-beat (0 desliga)
type HeartBeat struct {
	Outgoing time.Duration
	Incoming time.Duration
}

func (h HeartBeat) String() string {
	return fmt.Sprintf("%d,%d", h.Outgoing.Milliseconds(), h.Incoming.Milliseconds())
}

func ParseHeartBeat(v string) (HeartBeat, error) {
	if strings.TrimSpace(v) == "" {
		return HeartBeat{}, nil
	}

	parts := strings.Split(v, ",")
	if len(parts) != 2 {
		return HeartBeat{}, fmt.Errorf("stomp: heart-beat inválido %q", v)
	}

	out, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || out < 0 {
		return HeartBeat{}, fmt.Errorf("stomp: heart-beat inválido %q", v)
	}
	in, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || in < 0 {
		return HeartBeat{}, fmt.Errorf("stomp: heart-beat inválido %q", v)
	}

	return HeartBeat{
		Outgoing: time.Duration(out) * time.Millisecond,
		Incoming: time.Duration(in) * time.Millisecond,
	}, nil
}

// NegotiateHeartBeat combina o que o cliente pediu com o que o servidor respondeu.
// O resultado é visto do lado do cliente: Outgoing = intervalo de envio, Incoming = intervalo esperado.
func NegotiateHeartBeat(client, server HeartBeat) HeartBeat {
	var out, in time.Duration
	if client.Outgoing > 0 && server.Incoming > 0 {
		out = max(client.Outgoing, server.Incoming)
	}
	if client.Incoming > 0 && server.Outgoing > 0 {
		in = max(client.Incoming, server.Outgoing)
	}
	return HeartBeat{Outgoing: out, Incoming: in}
}
