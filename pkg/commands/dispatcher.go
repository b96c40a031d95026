package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/sipeed/picodice/pkg/metrics"
	"github.com/sipeed/picodice/pkg/ratelimit"
)

var ErrPermissionDenied = errors.New("permission denied")

const (
	msgPermissionDenied = "You do not have permission to use this command."
	msgRateLimited      = "You're sending commands too quickly. Please wait a moment."
)

type Handler func(ctx context.Context, req Request) error

// Reply is a response to a command together with its delivery directive.
type Reply struct {
	Text            string
	Private         bool
	Recipients      []string
	DeleteMessageID string
}

type Request struct {
	Channel    string
	ChatID     string
	SenderID   string
	SenderName string
	MessageID  string
	Text       string
	IsAdmin    bool
	// Args holds the whitespace-separated tokens after the command name.
	// It is filled in by the dispatcher.
	Args    []string
	Respond func(Reply) error
}

// Owner keys the sender's aliases, history, rate limit and admin entry.
// Sender IDs are only unique within a channel, so the channel is part of
// the key.
func (r Request) Owner() string {
	if r.Channel == "" {
		return r.SenderID
	}
	return r.Channel + ":" + r.SenderID
}

// DisplayName is the name results are attributed to.
func (r Request) DisplayName() string {
	if r.SenderName != "" {
		return r.SenderName
	}
	return r.SenderID
}

type Result struct {
	Matched bool
	Handled bool
	Command string
	Err     error
}

type Dispatcher struct {
	reg     *Registry
	prefix  *Prefix
	admins  []string
	limiter *ratelimit.Limiter
	metrics *metrics.Metrics
}

type Dispatching interface {
	Dispatch(ctx context.Context, req Request) Result
}

type DispatchFunc func(ctx context.Context, req Request) Result

func (f DispatchFunc) Dispatch(ctx context.Context, req Request) Result {
	return f(ctx, req)
}

type Option func(*Dispatcher)

// WithAdmins lists owners, in "channel:senderID" form, allowed to run
// admin-only commands in every chat of that channel.
func WithAdmins(ids []string) Option {
	return func(d *Dispatcher) { d.admins = append([]string(nil), ids...) }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func NewDispatcher(reg *Registry, prefix *Prefix, opts ...Option) *Dispatcher {
	if prefix == nil {
		prefix = NewPrefix(DefaultPrefix)
	}
	d := &Dispatcher{reg: reg, prefix: prefix}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Dispatcher) Dispatch(ctx context.Context, req Request) Result {
	cmdName, args, ok := parseCommand(d.prefix.Get(), req.Text)
	if !ok {
		return Result{Matched: false}
	}

	def, found := d.reg.Lookup(cmdName)
	if !found || !availableOn(def, req.Channel) {
		return Result{Matched: false, Command: cmdName}
	}
	if def.Handler == nil {
		return Result{Matched: false, Handled: false, Command: def.Name}
	}

	req.Args = args

	if def.AdminOnly && !d.isAdmin(req) {
		d.metrics.ObserveCommand(def.Name, "denied")
		err := reply(req, msgPermissionDenied)
		if err == nil {
			err = ErrPermissionDenied
		}
		return Result{Matched: true, Handled: true, Command: def.Name, Err: err}
	}

	if d.limiter != nil && !d.limiter.Allow(req.Owner()) {
		d.metrics.ObserveCommand(def.Name, "throttled")
		return Result{Matched: true, Handled: true, Command: def.Name, Err: reply(req, msgRateLimited)}
	}

	err := def.Handler(ctx, req)
	outcome := "ok"
	switch {
	case errors.Is(err, ErrInvalidAction):
		outcome = "invalid"
	case err != nil:
		outcome = "error"
	}
	d.metrics.ObserveCommand(def.Name, outcome)
	return Result{Matched: true, Handled: true, Command: def.Name, Err: err}
}

// Reported reports whether err has already been explained to the sender in
// a reply, so callers need not surface it as a failure.
func Reported(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrInvalidAction)
}

func (d *Dispatcher) isAdmin(req Request) bool {
	return req.IsAdmin || contains(d.admins, req.Owner())
}

// parseCommand splits text into a command name and its arguments when it
// starts with prefix. A "@botname" suffix on the command is ignored.
func parseCommand(prefix, input string) (string, []string, bool) {
	input = strings.TrimSpace(input)
	if prefix == "" || !strings.HasPrefix(input, prefix) {
		return "", nil, false
	}

	fields := strings.Fields(strings.TrimPrefix(input, prefix))
	if len(fields) == 0 {
		return "", nil, false
	}

	name := fields[0]
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		return "", nil, false
	}
	return name, fields[1:], true
}

func reply(req Request, text string) error {
	return respond(req, Reply{Text: text})
}

func respond(req Request, r Reply) error {
	if req.Respond == nil {
		return nil
	}
	return req.Respond(r)
}
