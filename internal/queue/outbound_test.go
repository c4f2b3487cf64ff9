package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/smsleopard-agent/internal/model"
)

type recordingQueue struct {
	topic string
	msg   Message
	err   error
}

func (r *recordingQueue) Publish(_ context.Context, topic string, msg Message) error {
	r.topic, r.msg = topic, msg
	return r.err
}

func (r *recordingQueue) Subscribe(context.Context, string, Handler) error { return nil }

func (r *recordingQueue) Close() error { return nil }

func fixedPublisher(q Queue) *OutboundPublisher {
	p := NewOutboundPublisher(q, discardLogger())
	p.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 30, 0, 0, time.FixedZone("EAT", 3*3600)) }
	return p
}

func TestOutboundPublisherSend(t *testing.T) {
	q := &recordingQueue{}
	resp := &model.AgentResponseWrapper{
		AgentResponse:  model.AgentResponse{ResponseText: "See you Friday!"},
		RequestTokens:  100,
		ResponseTokens: 12,
		CampaignID:     model.StringPtr("c1"),
	}

	ok, ts := fixedPublisher(q).Send(context.Background(), "+14125550123", resp)
	require.True(t, ok)
	assert.Equal(t, "2025-06-01T09:30:00Z", ts)
	assert.Equal(t, TopicOutbound, q.topic)
	assert.Equal(t, map[string]string{AttrMessageType: MessageTypeAgentReply, AttrCampaignID: "c1"}, q.msg.Attributes)

	var body map[string]any
	require.NoError(t, json.Unmarshal(q.msg.Body, &body))
	assert.Equal(t, "+14125550123", body["phoneNumber"])
	assert.Equal(t, "c1", body["campaignId"])
	assert.Equal(t, ts, body["timestamp"])

	agent := body["agentResponse"].(map[string]any)
	assert.Equal(t, "See you Friday!", agent["response_text"])
	assert.Equal(t, false, agent["guardrails_intervened"])
	assert.Equal(t, "c1", agent["campaign_id"])
	assert.NotContains(t, agent, "handoff_reason")
}

func TestOutboundPublisherWithoutCampaign(t *testing.T) {
	q := &recordingQueue{}
	ok, _ := fixedPublisher(q).Send(context.Background(), "+14125550123", &model.AgentResponseWrapper{})
	require.True(t, ok)
	assert.NotContains(t, q.msg.Attributes, AttrCampaignID)

	var body map[string]any
	require.NoError(t, json.Unmarshal(q.msg.Body, &body))
	assert.Contains(t, body, "campaignId")
	assert.Nil(t, body["campaignId"])
}

func TestOutboundPublisherFailures(t *testing.T) {
	q := &recordingQueue{}
	ok, ts := fixedPublisher(q).Send(context.Background(), "+14125550123", nil)
	assert.False(t, ok)
	assert.NotEmpty(t, ts)
	assert.Empty(t, q.topic)

	q.err = errors.New("broker down")
	ok, _ = fixedPublisher(q).Send(context.Background(), "+14125550123", &model.AgentResponseWrapper{})
	assert.False(t, ok)
}
