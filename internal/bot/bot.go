package bot

import (
	"context"
	"time"

	"github.com/xaenox/relay-bot/internal/classifier"
	"github.com/xaenox/relay-bot/internal/gateway"
	"github.com/xaenox/relay-bot/internal/generation"
	"github.com/xaenox/relay-bot/internal/media"
	"github.com/xaenox/relay-bot/internal/models"
	"github.com/xaenox/relay-bot/internal/moderation"
	"github.com/xaenox/relay-bot/internal/storage"
	"go.uber.org/zap"
)

// RunState is the terminal state of one pipeline run.
type RunState string

const (
	StateCommandHandled RunState = "command_handled"
	StateRejected       RunState = "rejected"
	StateSuppressed     RunState = "suppressed"
	StateDispatched     RunState = "dispatched"
	StateBanned         RunState = "banned"
	StateError          RunState = "error"
)

// Options carries the pipeline's behavioral knobs and user-facing copy.
type Options struct {
	// ModerateReplies runs the safety gate over generated replies too.
	ModerateReplies bool
	// RunTimeout bounds one pipeline run end to end.
	RunTimeout time.Duration

	ResetAckText  string
	RejectionText string
	FailureText   string
}

func (o *Options) applyDefaults() {
	if o.RunTimeout <= 0 {
		o.RunTimeout = 5 * time.Minute
	}
	if o.ResetAckText == "" {
		o.ResetAckText = "Conversation cleared. What would you like to talk about?"
	}
	if o.RejectionText == "" {
		o.RejectionText = "Sorry, I can't help with that."
	}
	if o.FailureText == "" {
		o.FailureText = "Sorry, something went wrong on my side. Please try again."
	}
}

// Bot wires the pipeline components together. Each inbound intake is
// processed by an independent run; runs for the same user are deliberately
// not serialized (see the staleness gate in pipeline.go).
type Bot struct {
	storage    storage.Storage
	classifier *classifier.Classifier
	resolver   *media.Resolver
	gate       *moderation.Gate
	generator  *generation.Client
	sender     gateway.Sender
	opts       Options
	logger     *zap.Logger
}

func New(
	store storage.Storage,
	clf *classifier.Classifier,
	resolver *media.Resolver,
	gate *moderation.Gate,
	generator *generation.Client,
	sender gateway.Sender,
	opts Options,
	logger *zap.Logger,
) *Bot {
	opts.applyDefaults()
	return &Bot{
		storage:    store,
		classifier: clf,
		resolver:   resolver,
		gate:       gate,
		generator:  generator,
		sender:     sender,
		opts:       opts,
		logger:     logger,
	}
}

// HandleIntake runs the pipeline for one inbound message. It is safe to call
// from its own goroutine; all failures are handled internally.
func (b *Bot) HandleIntake(in models.Intake) {
	ctx, cancel := context.WithTimeout(context.Background(), b.opts.RunTimeout)
	defer cancel()

	b.Process(ctx, in)
}

func (b *Bot) sendNotice(ctx context.Context, address, text string) {
	if _, err := b.sender.Send(ctx, address, text); err != nil {
		// Second-level failure: recorded, never propagated.
		b.logger.Error("Failed to send notice",
			zap.Error(err),
			zap.String("address", address))
	}
}
