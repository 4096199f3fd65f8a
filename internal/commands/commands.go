// Package commands handles the device-spoof command trigger, either from the
// HTTP route or from the kafka command topic.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"idmask/internal/identity/models"
	dErrors "idmask/pkg/domain-errors"
	"idmask/pkg/platform/audit"
	"idmask/pkg/requestcontext"
)

// ActionSpoofDevice regenerates the configuration from a fetched example.
const ActionSpoofDevice = "idmask.SPOOF_DEVICE"

// Result codes.
const (
	ResultOK    = 0
	ResultError = 1
)

const successMessage = "Successfully spoofed device information"

// Command is one trigger request.
type Command struct {
	ID       uuid.UUID `json:"id"`
	Action   string    `json:"action"`
	IssuedAt time.Time `json:"issued_at,omitzero"`
}

// Result is reported back to whoever sent the command.
type Result struct {
	CommandID uuid.UUID `json:"command_id"`
	Code      int       `json:"code"`
	Message   string    `json:"message"`
}

// Regenerator replaces the stored snapshot with a fetched example.
type Regenerator interface {
	Regenerate(ctx context.Context) (models.Snapshot, error)
}

// AuditPublisher receives audit events.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Receiver struct {
	regenerator    Regenerator
	logger         *slog.Logger
	auditPublisher AuditPublisher
}

type Option func(*Receiver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Receiver) {
		r.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Receiver) {
		r.auditPublisher = publisher
	}
}

func New(regenerator Regenerator, opts ...Option) (*Receiver, error) {
	if regenerator == nil {
		return nil, fmt.Errorf("regenerator is required")
	}
	r := &Receiver{regenerator: regenerator}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}
	return r, nil
}

// Handle runs cmd and always produces a Result; failures are reported in it.
func (r *Receiver) Handle(ctx context.Context, cmd Command) Result {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}
	ctx = requestcontext.WithCommandID(ctx, cmd.ID)
	if requestcontext.Actor(ctx) == "" {
		ctx = requestcontext.WithActor(ctx, "command")
	}

	res := Result{CommandID: cmd.ID}
	switch cmd.Action {
	case ActionSpoofDevice:
		if _, err := r.regenerator.Regenerate(ctx); err != nil {
			res.Code = ResultError
			res.Message = "Error spoofing device information: " + reason(err)
		} else {
			res.Code = ResultOK
			res.Message = successMessage
		}
	default:
		res.Code = ResultError
		res.Message = fmt.Sprintf("Unsupported command action %q", cmd.Action)
	}

	audit.Record(ctx, r.logger, r.auditPublisher, audit.EventCommandHandled,
		"action", cmd.Action,
		"code", res.Code,
		"reason", failureReason(res),
	)
	return res
}

func reason(err error) string {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

func failureReason(res Result) string {
	if res.Code == ResultOK {
		return ""
	}
	return res.Message
}
