package gelf

import (
	"encoding/json"
	"net"
	"os"
	"strings"
	"time"
)

// Syslog severities used in GELF messages.
const (
	LevelError   = 3
	LevelWarning = 4
	LevelInfo    = 6
)

// Writer sends GELF messages over UDP and implements io.Writer
// so it can be used with log.SetOutput via io.MultiWriter.
type Writer struct {
	conn     net.Conn
	hostname string
	service  string
	now      func() time.Time
}

// New creates a GELF UDP writer connected to addr (e.g. "172.17.0.1:12201").
// service is sent as the _service field.
func New(addr, service string) (*Writer, error) {
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, err
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = service + "-server"
	}

	return &Writer{conn: conn, hostname: hostname, service: service, now: time.Now}, nil
}

// Close releases the UDP socket.
func (w *Writer) Close() error {
	return w.conn.Close()
}

// Write implements io.Writer. Each call sends one GELF message.
func (w *Writer) Write(p []byte) (int, error) {
	short := stripLogPrefix(strings.TrimRight(string(p), "\n"))

	msg := map[string]any{
		"version":       "1.1",
		"host":          w.hostname,
		"short_message": short,
		"timestamp":     float64(w.now().UnixNano()) / 1e9,
		"level":         Level(short),
		"_service":      w.service,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return len(p), nil
	}

	// Fire-and-forget
	w.conn.Write(payload)
	return len(p), nil
}

// stripLogPrefix removes the standard log "2006/01/02 15:04:05 " prefix.
func stripLogPrefix(msg string) string {
	if len(msg) > 20 && msg[4] == '/' && msg[7] == '/' && msg[10] == ' ' && msg[13] == ':' {
		return msg[20:]
	}
	return msg
}

// Level picks the GELF severity for a log line.
func Level(msg string) int {
	switch {
	case strings.Contains(msg, "PANIC:") || strings.Contains(msg, "Fatal") || strings.HasPrefix(msg, "Error:"):
		return LevelError
	case strings.HasPrefix(msg, "Warning:"):
		return LevelWarning
	}
	return LevelInfo
}
