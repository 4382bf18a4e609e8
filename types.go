package authgate

import (
	"io"
	"log/slog"

	internalaudit "github.com/authgate/authgate/internal/audit"
	"github.com/authgate/authgate/internal/logging"
	"github.com/authgate/authgate/store"
)

// Identity is the durable account record. It is defined by the store
// package and re-exported here so store-agnostic callers never import
// the persistence layer.
type Identity = store.Identity

// DefaultRole is attached to every identity registered without explicit
// roles.
const DefaultRole = "User"

// RegisterRequest is the input for [Engine.Register]. Email and
// Password are required. Username is optional: when empty, the engine
// derives one from the email local-part plus a random suffix.
type RegisterRequest struct {
	Email    string
	Password string
	Username string
	Name     string
}

// TokenPair is the credential pair issued by Register, Login, and
// Refresh: a stateless access token and the raw opaque refresh token.
// How the pair travels (cookie, header, body) is the transport layer's
// concern.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuditEvent is a structured security event emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine's dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON lines to a writer.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// Logger is the structured logging surface the engine emits through.
type Logger = logging.Logger

// NewSlogLogger wraps a *slog.Logger as a [Logger]. A nil argument
// selects slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	return logging.NewSlog(l)
}
