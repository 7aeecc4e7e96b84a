// internal/stomp/frame.go
package stomp

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// Comandos STOMP usados pelo cliente e pelo servidor de desenvolvimento
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdSend        = "SEND"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
	CmdDisconnect  = "DISCONNECT"
)

// Headers comuns
const (
	HdrAcceptVersion = "accept-version"
	HdrVersion       = "version"
	HdrHost          = "host"
	HdrHeartBeat     = "heart-beat"
	HdrID            = "id"
	HdrDestination   = "destination"
	HdrSubscription  = "subscription"
	HdrMessageID     = "message-id"
	HdrAck           = "ack"
	HdrReceipt       = "receipt"
	HdrReceiptID     = "receipt-id"
	HdrMessage       = "message"
	HdrContentType   = "content-type"
	HdrContentLength = "content-length"
)

// Header é um par chave/valor; a ordem é preservada na serialização
type Header struct {
	Key   string
	Value string
}

type Frame struct {
	Command string
	Headers []Header
	Body    []byte
}

func New(command string, headers ...string) Frame {
	f := Frame{Command: command}
	for i := 0; i+1 < len(headers); i += 2 {
		f.Headers = append(f.Headers, Header{Key: headers[i], Value: headers[i+1]})
	}
	return f
}

// Get devolve o primeiro valor do header (STOMP 1.2: a primeira ocorrência vence)
func (f Frame) Get(key string) string {
	v, _ := f.Lookup(key)
	return v
}

func (f Frame) Lookup(key string) (string, bool) {
	for _, h := range f.Headers {
		if h.Key == key {
			return h.Value, true
		}
	}
	return "", false
}

func (f *Frame) Set(key, value string) {
	for i := range f.Headers {
		if f.Headers[i].Key == key {
			f.Headers[i].Value = value
			return
		}
	}
	f.Headers = append(f.Headers, Header{Key: key, Value: value})
}

// escapeHeaders é falso para CONNECT/CONNECTED, como manda a especificação 1.2
func escapeHeaders(command string) bool {
	return command != CmdConnect && command != CmdConnected
}

// Marshal serializa o frame terminado em NUL
func (f Frame) Marshal() []byte {
	var buf bytes.Buffer
	escape := escapeHeaders(f.Command)

	buf.WriteString(f.Command)
	buf.WriteByte('\n')
	for _, h := range f.Headers {
		if escape {
			buf.WriteString(encodeHeader(h.Key))
			buf.WriteByte(':')
			buf.WriteString(encodeHeader(h.Value))
		} else {
			buf.WriteString(h.Key)
			buf.WriteByte(':')
			buf.WriteString(h.Value)
		}
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)
	return buf.Bytes()
}

func (f Frame) String() string {
	return string(f.Marshal())
}

// ParseFrames lê zero ou mais frames concatenados. EOLs entre frames são heart-beats e são ignorados.
func ParseFrames(data []byte) ([]Frame, error) {
	var frames []Frame
	rest := data

	for {
		rest = bytes.TrimLeft(rest, "\r\n")
		if len(rest) == 0 {
			return frames, nil
		}

		f, n, err := parseFrame(rest)
		if err != nil {
			return frames, err
		}
		frames = append(frames, f)
		rest = rest[n:]
	}
}

func parseFrame(data []byte) (Frame, int, error) {
	headerEnd := bytes.Index(data, []byte("\n\n"))
	sepLen := 2
	if crlf := bytes.Index(data, []byte("\r\n\r\n")); crlf >= 0 && (headerEnd < 0 || crlf < headerEnd) {
		headerEnd = crlf
		sepLen = 4
	}
	if headerEnd < 0 {
		return Frame{}, 0, fmt.Errorf("stomp: frame sem fim de cabeçalho")
	}

	lines := strings.Split(strings.ReplaceAll(string(data[:headerEnd]), "\r\n", "\n"), "\n")
	f := Frame{Command: lines[0]}
	if f.Command == "" {
		return Frame{}, 0, fmt.Errorf("stomp: frame sem comando")
	}
	escape := escapeHeaders(f.Command)

	for _, line := range lines[1:] {
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return Frame{}, 0, fmt.Errorf("stomp: header inválido %q", line)
		}
		key, value := line[:idx], line[idx+1:]
		if escape {
			var err error
			if key, err = decodeHeader(key); err != nil {
				return Frame{}, 0, err
			}
			if value, err = decodeHeader(value); err != nil {
				return Frame{}, 0, err
			}
		}
		f.Headers = append(f.Headers, Header{Key: key, Value: value})
	}

	bodyStart := headerEnd + sepLen
	if cl, ok := f.Lookup(HdrContentLength); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil || n < 0 {
			return Frame{}, 0, fmt.Errorf("stomp: content-length inválido %q", cl)
		}
		if bodyStart+n >= len(data) || data[bodyStart+n] != 0 {
			return Frame{}, 0, fmt.Errorf("stomp: corpo incompleto")
		}
		f.Body = data[bodyStart : bodyStart+n]
		return f, bodyStart + n + 1, nil
	}

	nul := bytes.IndexByte(data[bodyStart:], 0)
	if nul < 0 {
		return Frame{}, 0, fmt.Errorf("stomp: frame sem terminador NUL")
	}
	f.Body = data[bodyStart : bodyStart+nul]
	return f, bodyStart + nul + 1, nil
}

var headerEncoder = strings.NewReplacer(
	`\`, `\\`,
	"\r", `\r`,
	"\n", `\n`,
	":", `\c`,
)

func encodeHeader(s string) string {
	return headerEncoder.Replace(s)
}

func decodeHeader(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}

	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' {
			b.WriteByte(s[i])
			continue
		}
		if i+1 >= len(s) {
			return "", fmt.Errorf("stomp: escape incompleto em %q", s)
		}
		i++
		switch s[i] {
		case '\\':
			b.WriteByte('\\')
		case 'r':
			b.WriteByte('\r')
		case 'n':
			b.WriteByte('\n')
		case 'c':
			b.WriteByte(':')
		default:
			return "", fmt.Errorf("stomp: escape inválido \\%c", s[i])
		}
	}
	return b.String(), nil
}
