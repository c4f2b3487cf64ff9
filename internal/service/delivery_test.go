package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/queue"
	"github.com/unclebandit/smsleopard-agent/internal/repository"
)

func TestDeliveryRecordsReply(t *testing.T) {
	conn := newTestDB(t)
	messages := &repository.ChatMessageRepository{DB: conn}
	sentAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	d := NewDelivery(messages, nil)
	d.Now = func() time.Time { return sentAt }

	body, err := json.Marshal(queue.OutboundBody{
		PhoneNumber: testPhone,
		AgentResponse: &model.AgentResponseWrapper{
			AgentResponse: model.AgentResponse{ResponseText: "Doors open at 6:30pm.", ShouldHandoff: false},
			CampaignID:    model.StringPtr(testCampaign),
		},
		CampaignID: model.StringPtr(testCampaign),
	})
	require.NoError(t, err)

	require.NoError(t, d.Handle(context.Background(), queue.Message{ID: "q1", Body: body}))

	msgs, err := messages.ListConversation(context.Background(), testPhone, testCampaign)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	got := msgs[0]
	assert.Equal(t, "Doors open at 6:30pm.", got.Message)
	assert.Equal(t, model.DirectionOutbound, got.Direction)
	assert.Equal(t, model.ResponseTypeAIAgent, *got.ResponseType)
	assert.Equal(t, model.MessageStatusSent, *got.Status)
	assert.False(t, got.Flagged())
	require.NotNil(t, got.SentAt)
	assert.True(t, sentAt.Equal(*got.SentAt))
}

func TestDeliveryDropsMalformed(t *testing.T) {
	d := NewDelivery(&repository.ChatMessageRepository{DB: newTestDB(t)}, nil)

	assert.NoError(t, d.Handle(context.Background(), queue.Message{Body: []byte("{")}))
	assert.NoError(t, d.Handle(context.Background(), queue.Message{Body: []byte(`{"phoneNumber":"+14125550123"}`)}))
}
