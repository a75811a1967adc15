package storage

import (
	"context"
	"time"

	"github.com/xaenox/relay-bot/internal/models"
)

type Storage interface {
	// GetOrCreateUser resolves the user for an address, creating the row on
	// first contact. Must be race-safe under concurrent first contact from
	// the same address (upsert, not find-then-create). A non-empty name is
	// recorded last-write-wins.
	GetOrCreateUser(ctx context.Context, address, name string) (*models.User, error)

	// SetUserBanned flips the ban flag for an existing user.
	SetUserBanned(ctx context.Context, address string, banned bool) error

	// CreateMessage appends an immutable message record.
	CreateMessage(ctx context.Context, msg *models.Message) error

	// ConversationWindow returns the user's messages strictly after the most
	// recent command-kind message whose content equals resetKeyword, in
	// ascending creation order. With no reset marker it returns the full
	// history.
	ConversationWindow(ctx context.Context, userID int64, resetKeyword string) ([]*models.Message, error)

	// CountUserMessagesAfter counts role-user messages for the user created
	// strictly after the given time.
	CountUserMessagesAfter(ctx context.Context, userID int64, after time.Time) (int, error)

	Close() error
}
