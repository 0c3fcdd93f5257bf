package dispatch

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/lhchen/assistant-realtime/internal/hub"
	"github.com/lhchen/assistant-realtime/internal/message"
)

// HandlerFunc processes one envelope of a given type. A returned error is
// logged and answered with an ERROR envelope; it never closes the
// connection.
type HandlerFunc func(connID string, env *message.Envelope) error

// CommandFunc processes one named command carried in a COMMAND envelope.
type CommandFunc func(connID string, env *message.Envelope, args map[string]any) error

// Recorder receives chat envelopes for best-effort archival. Implementations
// must not block.
type Recorder interface {
	Record(env *message.Envelope)
}

// Dispatcher routes inbound envelopes to type handlers and commands to
// command handlers.
type Dispatcher struct {
	hub    *hub.Hub
	logger *slog.Logger

	recorder Recorder

	mu       sync.RWMutex
	handlers map[message.Type]HandlerFunc
	commands map[string]CommandFunc
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithChatRecorder attaches a chat archival sink.
func WithChatRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.recorder = r }
}

// New creates a Dispatcher with the built-in type handlers registered.
func New(h *hub.Hub, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		hub:      h,
		logger:   logger,
		handlers: make(map[message.Type]HandlerFunc),
		commands: make(map[string]CommandFunc),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.registerDefaults()
	return d
}

func (d *Dispatcher) registerDefaults() {
	d.Register(message.TypePing, d.handlePing)
	d.Register(message.TypePong, d.handlePong)
	d.Register(message.TypeConnect, d.handleConnect)
	d.Register(message.TypeDisconnect, d.handleDisconnect)
	d.Register(message.TypeChat, d.handleChat)
	d.Register(message.TypeSwitchConversation, d.handleSwitchConversation)
	d.Register(message.TypeNotification, d.handleNotification)
	d.Register(message.TypeCommand, d.handleCommand)
	d.Register(message.TypeData, d.handleData)
	d.Register(message.TypeAIResponse, d.handleAIResponse)
	d.Register(message.TypeAIThinking, d.handleAIThinking)
	d.Register(message.TypeAIError, d.handleAIError)
}

// Register sets the handler for an envelope type, replacing any previous one.
func (d *Dispatcher) Register(t message.Type, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[t] = fn
}

// RegisterCommand adds a late-bound custom command handler. Built-in
// command names take precedence over entries registered here.
func (d *Dispatcher) RegisterCommand(name string, fn CommandFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands[name] = fn
	d.logger.Info("command handler registered", "command", name)
}

// UnregisterCommand removes a custom command handler.
func (d *Dispatcher) UnregisterCommand(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.commands[name]; ok {
		delete(d.commands, name)
		d.logger.Info("command handler unregistered", "command", name)
	}
}

// Handle routes one inbound envelope. Unknown types are logged and
// dropped without a reply. A handler error or panic is answered with an
// ERROR envelope; the connection stays open either way.
func (d *Dispatcher) Handle(connID string, env *message.Envelope) {
	d.mu.RLock()
	fn, ok := d.handlers[env.Type]
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn("no handler for message type", "conn_id", connID, "type", env.Type)
		return
	}

	if err := d.invoke(fn, connID, env); err != nil {
		d.logger.Error("handler failed",
			"conn_id", connID,
			"type", env.Type,
			"error", err,
		)
		d.hub.SendToConnection(connID, message.NewError(
			message.ErrCodeHandlerError,
			fmt.Sprintf("failed to handle %s message", env.Type),
			connID,
		))
	}
}

// invoke runs one handler, converting a panic into an error so a faulty
// handler cannot take down the read loop.
func (d *Dispatcher) invoke(fn HandlerFunc, connID string, env *message.Envelope) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(connID, env)
}
