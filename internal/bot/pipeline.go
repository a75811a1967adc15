package bot

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

// Process executes one full pipeline run and returns its terminal state.
// Moderation and staleness failures fail open; everything else is fatal for
// the run and triggers a best-effort failure notice.
func (b *Bot) Process(ctx context.Context, in models.Intake) RunState {
	runID := uuid.New().String()
	logger := b.logger.With(
		zap.String("run_id", runID),
		zap.String("address", in.Address),
		zap.String("provider_message_id", in.ProviderMessageID))

	user, err := b.storage.GetOrCreateUser(ctx, in.Address, in.Name)
	if err != nil {
		logger.Error("Failed to resolve user", zap.Error(err))
		b.sendNotice(ctx, in.Address, b.opts.FailureText)
		return StateError
	}
	if user.Banned {
		logger.Info("Dropping message from banned user", zap.Int64("user_id", user.ID))
		return StateBanned
	}

	kind := b.classifier.Classify(in)
	logger = logger.With(zap.Int64("user_id", user.ID), zap.String("kind", string(kind)))

	if kind == models.KindCommand {
		return b.handleReset(ctx, logger, user)
	}

	body := in.Body
	var mediaRef *models.MediaRef
	if kind == models.KindImage || kind == models.KindAudio {
		ref, transcript, err := b.resolver.Resolve(ctx, in, kind)
		if err != nil {
			logger.Error("Failed to resolve media", zap.Error(err))
			b.sendNotice(ctx, user.Address, b.opts.FailureText)
			return StateError
		}
		mediaRef = ref
		if kind == models.KindAudio {
			body = transcript
		}
	}

	verdict, err := b.gate.Check(ctx, body)
	if err != nil {
		// Only reachable when the gate is configured fail-closed.
		logger.Error("Moderation failed", zap.Error(err))
		b.sendNotice(ctx, user.Address, b.opts.FailureText)
		return StateError
	}
	if verdict.Flagged {
		return b.handleRejection(ctx, logger, user, kind, body, mediaRef, in.Forwarded, verdict)
	}

	inbound := &models.Message{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Role:      models.RoleUser,
		Kind:      kind,
		Content:   body,
		Media:     mediaRef,
		Forwarded: in.Forwarded,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.storage.CreateMessage(ctx, inbound); err != nil {
		logger.Error("Failed to persist inbound message", zap.Error(err))
		b.sendNotice(ctx, user.Address, b.opts.FailureText)
		return StateError
	}

	window, err := b.storage.ConversationWindow(ctx, user.ID, b.classifier.ResetKeyword())
	if err != nil {
		// Fail open: answer from the current turn alone rather than block.
		logger.Warn("History query failed, proceeding without context", zap.Error(err))
		window = []*models.Message{inbound}
	}

	reply, err := b.generator.Reply(ctx, user.Name, window)
	if err != nil {
		logger.Error("Failed to generate reply", zap.Error(err))
		b.sendNotice(ctx, user.Address, b.opts.FailureText)
		return StateError
	}

	if b.opts.ModerateReplies {
		outVerdict, err := b.gate.Check(ctx, reply)
		if err != nil {
			logger.Error("Reply moderation failed", zap.Error(err))
			b.sendNotice(ctx, user.Address, b.opts.FailureText)
			return StateError
		}
		if outVerdict.Flagged {
			logger.Warn("Generated reply was flagged, replacing with refusal",
				zap.Strings("categories", outVerdict.Categories))
			reply = b.opts.RejectionText
		}
	}

	if b.isStale(ctx, logger, user.ID, inbound.CreatedAt) {
		logger.Info("Discarding reply superseded by newer message")
		return StateSuppressed
	}

	return b.dispatch(ctx, logger, user, reply)
}

// handleReset persists the reset marker and acknowledges it. No generation
// happens on this path.
func (b *Bot) handleReset(ctx context.Context, logger *zap.Logger, user *models.User) RunState {
	marker := &models.Message{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Role:      models.RoleUser,
		Kind:      models.KindCommand,
		Content:   b.classifier.ResetKeyword(),
		CreatedAt: time.Now().UTC(),
	}
	if err := b.storage.CreateMessage(ctx, marker); err != nil {
		logger.Error("Failed to persist reset marker", zap.Error(err))
		b.sendNotice(ctx, user.Address, b.opts.FailureText)
		return StateError
	}

	b.sendNotice(ctx, user.Address, b.opts.ResetAckText)
	logger.Info("Conversation reset")
	return StateCommandHandled
}

// handleRejection records the flagged inbound message with its moderation
// reason and tells the user. The context store and generator are never
// reached on this path.
func (b *Bot) handleRejection(ctx context.Context, logger *zap.Logger, user *models.User, kind models.MessageKind, body string, mediaRef *models.MediaRef, forwarded bool, verdict models.Verdict) RunState {
	rejected := &models.Message{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		Role:             models.RoleUser,
		Kind:             kind,
		Content:          body,
		Media:            mediaRef,
		Forwarded:        forwarded,
		ModerationReason: strings.Join(verdict.Categories, ","),
		CreatedAt:        time.Now().UTC(),
	}
	if err := b.storage.CreateMessage(ctx, rejected); err != nil {
		logger.Error("Failed to persist rejected message", zap.Error(err))
	}

	b.sendNotice(ctx, user.Address, b.opts.RejectionText)
	logger.Info("Rejected flagged message", zap.Strings("categories", verdict.Categories))
	return StateRejected
}

// isStale reports whether a newer user message has landed since the inbound
// one was persisted. Query failure counts as not stale; this check narrows
// the duplicate-reply window, it does not close it.
func (b *Bot) isStale(ctx context.Context, logger *zap.Logger, userID int64, since time.Time) bool {
	newer, err := b.storage.CountUserMessagesAfter(ctx, userID, since)
	if err != nil {
		logger.Warn("Staleness query failed, assuming not stale", zap.Error(err))
		return false
	}
	return newer > 0
}

// dispatch persists the assistant reply, then sends it. Order matters: a
// delivery failure must leave the persisted reply in place.
func (b *Bot) dispatch(ctx context.Context, logger *zap.Logger, user *models.User, reply string) RunState {
	msg := &models.Message{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Role:      models.RoleAssistant,
		Kind:      models.KindText,
		Content:   reply,
		CreatedAt: time.Now().UTC(),
	}
	if err := b.storage.CreateMessage(ctx, msg); err != nil {
		logger.Error("Failed to persist reply", zap.Error(err))
		b.sendNotice(ctx, user.Address, b.opts.FailureText)
		return StateError
	}

	providerID, err := b.sender.Send(ctx, user.Address, reply)
	if err != nil {
		// Not retried and not rolled back; the conversational record stays
		// consistent even when delivery fails.
		logger.Error("Failed to deliver reply", zap.Error(err), zap.String("message_id", msg.ID))
		return StateDispatched
	}

	logger.Info("Reply dispatched",
		zap.String("message_id", msg.ID),
		zap.String("provider_message_id", providerID))
	return StateDispatched
}
