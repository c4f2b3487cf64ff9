package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
)

// ChatMessageRepositoryInterface is the append-only conversation log.
type ChatMessageRepositoryInterface interface {
	Add(ctx context.Context, msg *model.ChatMessage) error
	GetByID(ctx context.Context, id string) (*model.ChatMessage, error)
	ListConversation(ctx context.Context, phoneNumber, campaignID string) ([]*model.ChatMessage, error)
	UpdateAttributes(ctx context.Context, id string, attrs model.MessageAttributes) error
}

type ChatMessageRepository struct {
	DB *sql.DB
}

const chatMessageColumns = `id, phone_number, campaign_id, message, direction, timestamp, response_type,
        guardrails_intervened, user_sentiment, should_handoff, status, sent_at, external_message_id, error_message`

func scanChatMessage(row interface{ Scan(...any) error }) (*model.ChatMessage, error) {
	var (
		m                                           model.ChatMessage
		campaignID, responseType, sentiment, status sql.NullString
		externalID, errorMessage                    sql.NullString
		intervened, handoff                         sql.NullBool
		sentAt                                      sql.NullTime
	)
	err := row.Scan(
		&m.ID, &m.PhoneNumber, &campaignID, &m.Message, &m.Direction, &m.Timestamp, &responseType,
		&intervened, &sentiment, &handoff, &status, &sentAt, &externalID, &errorMessage,
	)
	if err != nil {
		return nil, err
	}

	m.CampaignID = stringPtr(campaignID)
	if responseType.Valid {
		rt := model.ResponseType(responseType.String)
		m.ResponseType = &rt
	}
	m.GuardrailsIntervened = boolPtr(intervened)
	if sentiment.Valid {
		s := model.Sentiment(sentiment.String)
		m.UserSentiment = &s
	}
	m.ShouldHandoff = boolPtr(handoff)
	if status.Valid {
		st := model.MessageStatus(status.String)
		m.Status = &st
	}
	m.SentAt = timePtr(sentAt)
	m.ExternalMessageID = stringPtr(externalID)
	m.ErrorMessage = stringPtr(errorMessage)
	return &m, nil
}

// Add appends a message, assigning an id and timestamp when missing.
func (r *ChatMessageRepository) Add(ctx context.Context, msg *model.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	var responseType, sentiment, status sql.NullString
	if msg.ResponseType != nil {
		responseType = sql.NullString{String: string(*msg.ResponseType), Valid: true}
	}
	if msg.UserSentiment != nil {
		sentiment = sql.NullString{String: string(*msg.UserSentiment), Valid: true}
	}
	if msg.Status != nil {
		status = sql.NullString{String: string(*msg.Status), Valid: true}
	}

	query := `
        INSERT INTO chat_messages (` + chatMessageColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
    `
	_, err := r.DB.ExecContext(ctx, query,
		msg.ID, msg.PhoneNumber, nullString(msg.CampaignID), msg.Message, string(msg.Direction), msg.Timestamp,
		responseType, nullBool(msg.GuardrailsIntervened), sentiment, nullBool(msg.ShouldHandoff), status,
		nullTime(msg.SentAt), nullString(msg.ExternalMessageID), nullString(msg.ErrorMessage),
	)
	return err
}

func (r *ChatMessageRepository) GetByID(ctx context.Context, id string) (*model.ChatMessage, error) {
	query := `SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE id = $1`
	m, err := scanChatMessage(r.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewMessageNotFound(id)
		}
		return nil, err
	}
	return m, nil
}

// ListConversation returns the campaign-scoped history for a phone number,
// oldest first.
func (r *ChatMessageRepository) ListConversation(ctx context.Context, phoneNumber, campaignID string) ([]*model.ChatMessage, error) {
	query := `
        SELECT ` + chatMessageColumns + `
        FROM chat_messages
        WHERE phone_number = $1 AND campaign_id = $2
        ORDER BY timestamp ASC, id ASC
    `
	rows, err := r.DB.QueryContext(ctx, query, phoneNumber, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*model.ChatMessage{}
	for rows.Next() {
		m, err := scanChatMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// UpdateAttributes overwrites the allow-listed annotation fields that are set
// in attrs. Writing the same values twice leaves the row unchanged.
func (r *ChatMessageRepository) UpdateAttributes(ctx context.Context, id string, attrs model.MessageAttributes) error {
	if attrs.Empty() {
		return nil
	}

	sets := []string{}
	args := []interface{}{}
	argPos := 1

	if attrs.GuardrailsIntervened != nil {
		sets = append(sets, fmt.Sprintf("guardrails_intervened = $%d", argPos))
		args = append(args, *attrs.GuardrailsIntervened)
		argPos++
	}
	if attrs.UserSentiment != nil {
		if !attrs.UserSentiment.Valid() {
			return fmt.Errorf("invalid sentiment %q", *attrs.UserSentiment)
		}
		sets = append(sets, fmt.Sprintf("user_sentiment = $%d", argPos))
		args = append(args, string(*attrs.UserSentiment))
		argPos++
	}

	query := fmt.Sprintf("UPDATE chat_messages SET %s WHERE id = $%d", strings.Join(sets, ", "), argPos)
	args = append(args, id)

	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectRow(res, appErrors.NewMessageNotFound(id))
}

var _ ChatMessageRepositoryInterface = (*ChatMessageRepository)(nil)
