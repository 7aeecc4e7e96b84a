package stomp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal_EscapesHeadersExceptOnConnect(t *testing.T) {
	sub := New(CmdSubscribe, HdrID, "sub-0", HdrDestination, "/user-queue/a:b")
	assert.Equal(t, "SUBSCRIBE\nid:sub-0\ndestination:/user-queue/a\\cb\n\n\x00", string(sub.Marshal()))

	conn := New(CmdConnect, HdrHost, "api:8080")
	assert.Equal(t, "CONNECT\nhost:api:8080\n\n\x00", string(conn.Marshal()))
}

func TestParseFrames_MultipleFramesAndHeartBeats(t *testing.T) {
	data := []byte("\nCONNECTED\nversion:1.2\nheart-beat:0,10000\n\n\x00\n\nMESSAGE\nsubscription:sub-0\ndestination:/q/a\\cb\n\n{\"x\":1}\x00")

	frames, err := ParseFrames(data)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	assert.Equal(t, CmdConnected, frames[0].Command)
	assert.Equal(t, "1.2", frames[0].Get(HdrVersion))
	assert.Equal(t, "0,10000", frames[0].Get(HdrHeartBeat))

	assert.Equal(t, CmdMessage, frames[1].Command)
	assert.Equal(t, "/q/a:b", frames[1].Get(HdrDestination))
	assert.Equal(t, `{"x":1}`, string(frames[1].Body))
}

func TestParseFrames_ContentLengthAllowsNul(t *testing.T) {
	data := []byte("MESSAGE\ncontent-length:3\n\na\x00b\x00")

	frames, err := ParseFrames(data)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte("a\x00b"), frames[0].Body)
}

func TestParseFrames_FirstHeaderWins(t *testing.T) {
	frames, err := ParseFrames([]byte("ERROR\nmessage:first\nmessage:second\n\n\x00"))
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, "first", frames[0].Get(HdrMessage))
}

func TestParseFrames_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "sem fim de cabeçalho", data: "MESSAGE\nid:1"},
		{name: "sem NUL", data: "MESSAGE\n\nbody"},
		{name: "header inválido", data: "MESSAGE\nsemdoispontos\n\n\x00"},
		{name: "escape inválido", data: "MESSAGE\nk:\\t\n\n\x00"},
		{name: "content-length maior que o corpo", data: "MESSAGE\ncontent-length:10\n\nab\x00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFrames([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestFrameSet(t *testing.T) {
	f := New(CmdSend, HdrDestination, "/a")
	f.Set(HdrDestination, "/b")
	f.Set(HdrContentType, "application/json")

	assert.Equal(t, "/b", f.Get(HdrDestination))
	assert.Equal(t, "application/json", f.Get(HdrContentType))
	assert.Len(t, f.Headers, 2)
}

func TestHeartBeat(t *testing.T) {
	hb, err := ParseHeartBeat("10000,5000")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, hb.Outgoing)
	assert.Equal(t, 5*time.Second, hb.Incoming)
	assert.Equal(t, "10000,5000", hb.String())

	_, err = ParseHeartBeat("abc")
	assert.Error(t, err)

	empty, err := ParseHeartBeat("")
	require.NoError(t, err)
	assert.Zero(t, empty)

	client := HeartBeat{Outgoing: 10 * time.Second, Incoming: 10 * time.Second}
	server := HeartBeat{Outgoing: 0, Incoming: 20 * time.Second}
	got := NegotiateHeartBeat(client, server)
	assert.Equal(t, 20*time.Second, got.Outgoing)
	assert.Zero(t, got.Incoming)
}
