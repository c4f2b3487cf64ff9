package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-agent/internal/db"
	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func seedCampaign(t *testing.T, conn *sql.DB, id string) {
	t.Helper()
	repo := &CampaignRepository{DB: conn}
	require.NoError(t, repo.Create(context.Background(), &model.Campaign{
		CampaignID:      id,
		Name:            "Spring Open House",
		CampaignDetails: "Open house on Saturday at 10am, 123 Main St.",
		MessageTemplate: "Hi {first_name}, join us Saturday!",
	}))
}

func TestCustomerGetOrCreate(t *testing.T) {
	ctx := context.Background()
	repo := &CustomerRepository{DB: newTestDB(t)}

	_, err := repo.GetByPhone(ctx, "+12128675309")
	var notFound *appErrors.ErrCustomerNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "***-***-5309", notFound.MaskedPhone)

	c, err := repo.GetOrCreate(ctx, "+12128675309")
	require.NoError(t, err)
	assert.Equal(t, model.CustomerStatusAutomated, c.Status)
	assert.Nil(t, c.MostRecentCampaignID)
	assert.Equal(t, "Unknown Customer", c.DisplayName())

	again, err := repo.GetOrCreate(ctx, "+12128675309")
	require.NoError(t, err)
	assert.Equal(t, c.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func TestCustomerUpdateStatusIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := &CustomerRepository{DB: newTestDB(t)}
	_, err := repo.GetOrCreate(ctx, "+12128675309")
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		require.NoError(t, repo.UpdateStatus(ctx, "+12128675309", model.CustomerStatusNeedsResponse))
	}
	c, err := repo.GetByPhone(ctx, "+12128675309")
	require.NoError(t, err)
	assert.Equal(t, model.CustomerStatusNeedsResponse, c.Status)

	needing, err := repo.ListByStatus(ctx, model.CustomerStatusNeedsResponse)
	require.NoError(t, err)
	assert.Len(t, needing, 1)

	err = repo.UpdateStatus(ctx, "+12128675309", "paused")
	var invalid *appErrors.ErrInvalidStatus
	assert.ErrorAs(t, err, &invalid)

	err = repo.UpdateStatus(ctx, "+13105550100", model.CustomerStatusAutomated)
	var notFound *appErrors.ErrCustomerNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestCustomerSetCampaign(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedCampaign(t, conn, "camp-1")
	repo := &CustomerRepository{DB: conn}

	_, err := repo.GetOrCreate(ctx, "+12128675309")
	require.NoError(t, err)
	require.NoError(t, repo.SetCampaign(ctx, "+12128675309", "camp-1"))

	c, err := repo.GetByPhone(ctx, "+12128675309")
	require.NoError(t, err)
	assert.Equal(t, "camp-1", c.CampaignID())
}

func TestCampaignNotFound(t *testing.T) {
	repo := &CampaignRepository{DB: newTestDB(t)}
	_, err := repo.GetByID(context.Background(), "missing")
	var notFound *appErrors.ErrCampaignNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.CampaignID)
}

func TestCampaignCreateAndList(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	seedCampaign(t, conn, "camp-1")
	repo := &CampaignRepository{DB: conn}

	c, err := repo.GetByID(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, "Spring Open House", c.Name)

	generated := &model.Campaign{Name: "Fall Sale"}
	require.NoError(t, repo.Create(ctx, generated))
	assert.NotEmpty(t, generated.CampaignID)

	all, total, err := repo.List(ctx, 0, 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, 2, total)

	page, total, err := repo.List(ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, page, 1)
	assert.Equal(t, 2, total)
}

func TestListConversationIsScopedAndOrdered(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	repo := &ChatMessageRepository{DB: conn}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	camp1, camp2 := "camp-1", "camp-2"
	msgs := []*model.ChatMessage{
		{PhoneNumber: "+12128675309", CampaignID: &camp1, Message: "third", Direction: model.DirectionInbound, Timestamp: base.Add(2 * time.Minute)},
		{PhoneNumber: "+12128675309", CampaignID: &camp1, Message: "first", Direction: model.DirectionOutbound, Timestamp: base},
		{PhoneNumber: "+12128675309", CampaignID: &camp2, Message: "other campaign", Direction: model.DirectionInbound, Timestamp: base.Add(time.Minute)},
		{PhoneNumber: "+13105550100", CampaignID: &camp1, Message: "other phone", Direction: model.DirectionInbound, Timestamp: base.Add(time.Minute)},
		{PhoneNumber: "+12128675309", CampaignID: &camp1, Message: "second", Direction: model.DirectionOutbound, Timestamp: base.Add(time.Minute)},
	}
	for _, m := range msgs {
		require.NoError(t, repo.Add(ctx, m))
		assert.NotEmpty(t, m.ID)
	}

	got, err := repo.ListConversation(ctx, "+12128675309", "camp-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].Message)
	assert.Equal(t, "second", got[1].Message)
	assert.Equal(t, "third", got[2].Message)
}

func TestUpdateAttributesOverwrites(t *testing.T) {
	ctx := context.Background()
	repo := &ChatMessageRepository{DB: newTestDB(t)}

	camp := "camp-1"
	msg := &model.ChatMessage{PhoneNumber: "+12128675309", CampaignID: &camp, Message: "hi", Direction: model.DirectionInbound}
	require.NoError(t, repo.Add(ctx, msg))

	attrs := model.MessageAttributes{
		GuardrailsIntervened: model.BoolPtr(true),
		UserSentiment:        model.SentimentPtr(model.SentimentNegative),
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, repo.UpdateAttributes(ctx, msg.ID, attrs))
		got, err := repo.GetByID(ctx, msg.ID)
		require.NoError(t, err)
		require.NotNil(t, got.GuardrailsIntervened)
		assert.True(t, *got.GuardrailsIntervened)
		require.NotNil(t, got.UserSentiment)
		assert.Equal(t, model.SentimentNegative, *got.UserSentiment)
	}

	// Sentiment only; the guardrail flag stays.
	require.NoError(t, repo.UpdateAttributes(ctx, msg.ID, model.MessageAttributes{UserSentiment: model.SentimentPtr(model.SentimentPositive)}))
	got, err := repo.GetByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.True(t, got.Flagged())
	assert.Equal(t, model.SentimentPositive, *got.UserSentiment)

	err = repo.UpdateAttributes(ctx, "nope", attrs)
	var notFound *appErrors.ErrMessageNotFound
	assert.ErrorAs(t, err, &notFound)

	err = repo.UpdateAttributes(ctx, msg.ID, model.MessageAttributes{UserSentiment: model.SentimentPtr("angry")})
	assert.Error(t, err)
}
