package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/xaenox/relay-bot/internal/models"
)

// MemoryStorage keeps users and messages in process memory. It implements
// the same ordering semantics as PostgresStorage and backs tests and local
// development.
type MemoryStorage struct {
	mu       sync.RWMutex
	nextID   int64
	users    map[string]*models.User
	messages []*models.Message
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]*models.User),
	}
}

func (s *MemoryStorage) GetOrCreateUser(ctx context.Context, address, name string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user, exists := s.users[address]; exists {
		if name != "" && name != user.Name {
			user.Name = name
			user.UpdatedAt = time.Now()
		}
		copied := *user
		return &copied, nil
	}

	s.nextID++
	now := time.Now()
	user := &models.User{
		ID:        s.nextID,
		Address:   address,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[address] = user

	copied := *user
	return &copied, nil
}

func (s *MemoryStorage) SetUserBanned(ctx context.Context, address string, banned bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.users[address]
	if !exists {
		return fmt.Errorf("user not found")
	}

	user.Banned = banned
	user.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *msg
	if msg.Media != nil {
		media := *msg.Media
		copied.Media = &media
	}
	s.messages = append(s.messages, &copied)
	return nil
}

func (s *MemoryStorage) ConversationWindow(ctx context.Context, userID int64, resetKeyword string) ([]*models.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var marker time.Time
	for _, msg := range s.messages {
		if msg.UserID != userID || msg.Kind != models.KindCommand || msg.Content != resetKeyword {
			continue
		}
		if msg.CreatedAt.After(marker) {
			marker = msg.CreatedAt
		}
	}

	var window []*models.Message
	for _, msg := range s.messages {
		if msg.UserID != userID || !msg.CreatedAt.After(marker) {
			continue
		}
		copied := *msg
		window = append(window, &copied)
	}

	sort.SliceStable(window, func(i, j int) bool {
		return window[i].CreatedAt.Before(window[j].CreatedAt)
	})

	return window, nil
}

func (s *MemoryStorage) CountUserMessagesAfter(ctx context.Context, userID int64, after time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages {
		if msg.UserID == userID && msg.Role == models.RoleUser && msg.CreatedAt.After(after) {
			count++
		}
	}

	return count, nil
}

func (s *MemoryStorage) Close() error {
	// Nothing to close for in-memory storage
	return nil
}
