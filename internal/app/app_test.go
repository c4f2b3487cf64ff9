package app

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-agent/internal/config"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/service"
)

const testPhone = "+14125550123"

func testConfig() *config.Config {
	return &config.Config{
		DatabaseDriver:    "sqlite3",
		DatabaseURL:       ":memory:",
		QueueBackend:      config.QueueMemory,
		AgentProvider:     config.ProviderMock,
		GuardrailMode:     config.GuardrailKeyword,
		RetryMaxRetries:   1,
		RetryBaseDelay:    time.Millisecond,
		RequestLimit:      50,
		WorkerConcurrency: 2,
	}
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	a, err := New(context.Background(), testConfig(), logger, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	require.NoError(t, a.StartInProcess(context.Background()))
	return a
}

func TestInboundSMSIsAnsweredInProcess(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Campaigns.Create(ctx, &model.Campaign{
		CampaignID:      "camp-jazz",
		Name:            "Jazz Night",
		CampaignDetails: "Friday 7pm",
		MessageTemplate: "Hi {first_name}, Jazz Night is this Friday!",
	}))
	_, err := a.Conversations.EnrollCustomer(ctx, service.EnrollRequest{PhoneNumber: testPhone, FirstName: "Amina", CampaignID: "camp-jazz"})
	require.NoError(t, err)

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sms/inbound", "application/json",
		strings.NewReader(`{"from_phone_number":"`+testPhone+`","message_body":"What time does it start?"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		msgs, err := a.Messages.ListConversation(ctx, testPhone, "camp-jazz")
		return err == nil && len(msgs) == 3
	}, 5*time.Second, 20*time.Millisecond)

	msgs, err := a.Messages.ListConversation(ctx, testPhone, "camp-jazz")
	require.NoError(t, err)
	assert.Equal(t, model.DirectionOutbound, msgs[0].Direction)
	assert.Equal(t, model.DirectionInbound, msgs[1].Direction)
	require.NotNil(t, msgs[1].UserSentiment)
	assert.Equal(t, model.DirectionOutbound, msgs[2].Direction)
	assert.Equal(t, model.ResponseTypeAIAgent, *msgs[2].ResponseType)
}

func TestHandoffFlagsCustomer(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Campaigns.Create(ctx, &model.Campaign{CampaignID: "camp-jazz", Name: "Jazz Night"}))
	_, err := a.Conversations.EnrollCustomer(ctx, service.EnrollRequest{PhoneNumber: testPhone, CampaignID: "camp-jazz"})
	require.NoError(t, err)

	_, err = a.Intake.Receive(ctx, service.InboundSMS{FromPhoneNumber: testPhone, MessageBody: "Can I talk to a human?"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		c, err := a.Customers.GetByPhone(ctx, testPhone)
		return err == nil && c.Status == model.CustomerStatusNeedsResponse
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig()
	cfg.DatabaseDriver = "mysql"
	_, err := New(context.Background(), cfg, slog.Default(), nil)
	assert.Error(t, err)
}
