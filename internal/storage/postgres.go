package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/relay-bot/internal/models"
	"go.uber.org/zap"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStorage(config DatabaseConfig, logger *zap.Logger) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db, logger: logger}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}
	logger.Info("Database schema initialized", zap.String("dbname", config.DBName))

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetOrCreateUser(ctx context.Context, address, name string) (*models.User, error) {
	// Upsert so concurrent first contact from the same address cannot race a
	// find-then-create pair. An empty name never clobbers a stored one.
	query := `
		INSERT INTO users (address, name)
		VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (address) DO UPDATE
		SET name       = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		    updated_at = now()
		RETURNING id, address, COALESCE(name, ''), banned, created_at, updated_at`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, address, name).Scan(
		&user.ID,
		&user.Address,
		&user.Name,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("error upserting user: %v", err)
	}

	return user, nil
}

func (s *PostgresStorage) SetUserBanned(ctx context.Context, address string, banned bool) error {
	query := `
		UPDATE users
		SET banned = $1, updated_at = now()
		WHERE address = $2`

	result, err := s.db.ExecContext(ctx, query, banned, address)
	if err != nil {
		return fmt.Errorf("error updating ban flag: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("user not found")
	}

	return nil
}

func (s *PostgresStorage) CreateMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, user_id, role, kind, content, media_url,
			media_fingerprint, media_content_type, forwarded, moderation_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	var mediaURL, mediaFingerprint, mediaContentType sql.NullString
	if msg.Media != nil {
		mediaURL = sql.NullString{String: msg.Media.URL, Valid: true}
		mediaFingerprint = sql.NullString{String: msg.Media.Fingerprint, Valid: true}
		mediaContentType = sql.NullString{String: msg.Media.ContentType, Valid: true}
	}

	var moderationReason sql.NullString
	if msg.ModerationReason != "" {
		moderationReason = sql.NullString{String: msg.ModerationReason, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, query,
		msg.ID,
		msg.UserID,
		msg.Role,
		msg.Kind,
		msg.Content,
		mediaURL,
		mediaFingerprint,
		mediaContentType,
		msg.Forwarded,
		moderationReason,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("error creating message: %v", err)
	}

	return nil
}

func (s *PostgresStorage) ConversationWindow(ctx context.Context, userID int64, resetKeyword string) ([]*models.Message, error) {
	// Everything strictly after the latest matching reset marker; the whole
	// history when no marker exists. Secondary id sort keeps equal
	// timestamps deterministic.
	query := `
		SELECT id, user_id, role, kind, content, media_url, media_fingerprint,
			media_content_type, forwarded, moderation_reason, created_at
		FROM messages
		WHERE user_id = $1
		  AND created_at > COALESCE(
			(SELECT created_at FROM messages
			 WHERE user_id = $1 AND kind = 'command' AND content = $2
			 ORDER BY created_at DESC, id DESC
			 LIMIT 1),
			'-infinity'::timestamptz)
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, userID, resetKeyword)
	if err != nil {
		return nil, fmt.Errorf("error querying conversation window: %v", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %v", err)
	}

	return messages, nil
}

func (s *PostgresStorage) CountUserMessagesAfter(ctx context.Context, userID int64, after time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM messages
		WHERE user_id = $1 AND role = 'user' AND created_at > $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, userID, after).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting newer messages: %v", err)
	}

	return count, nil
}

func scanMessage(rows *sql.Rows) (*models.Message, error) {
	msg := &models.Message{}
	var mediaURL, mediaFingerprint, mediaContentType, moderationReason sql.NullString

	err := rows.Scan(
		&msg.ID,
		&msg.UserID,
		&msg.Role,
		&msg.Kind,
		&msg.Content,
		&mediaURL,
		&mediaFingerprint,
		&mediaContentType,
		&msg.Forwarded,
		&moderationReason,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if mediaURL.Valid {
		msg.Media = &models.MediaRef{
			URL:         mediaURL.String,
			Fingerprint: mediaFingerprint.String,
			ContentType: mediaContentType.String,
		}
	}
	msg.ModerationReason = moderationReason.String

	return msg, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
