package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/repository"
)

// paginationCampaignRepo serves five campaigns, newest first.
type paginationCampaignRepo struct{}

func (m *paginationCampaignRepo) List(_ context.Context, offset, limit int) ([]*model.Campaign, int, error) {
	all := make([]*model.Campaign, 0, 5)
	for i := 5; i >= 1; i-- {
		all = append(all, &model.Campaign{CampaignID: fmt.Sprintf("c%d", i), Name: fmt.Sprintf("C%d", i)})
	}
	if offset >= len(all) {
		return []*model.Campaign{}, len(all), nil
	}
	end := min(offset+limit, len(all))
	return all[offset:end], len(all), nil
}

func (m *paginationCampaignRepo) Create(context.Context, *model.Campaign) error { return nil }

func (m *paginationCampaignRepo) GetByID(_ context.Context, id string) (*model.Campaign, error) {
	return &model.Campaign{CampaignID: id, Name: "Mock"}, nil
}

func TestListCampaignsPagination(t *testing.T) {
	svc := &ConversationService{CampaignRepo: &paginationCampaignRepo{}}
	ctx := context.Background()

	page1, pagination, err := svc.ListCampaigns(ctx, 1, 2)
	require.NoError(t, err)
	page3, _, err := svc.ListCampaigns(ctx, 3, 2)
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"page": 1, "page_size": 2, "total_count": 5, "total_pages": 3}, pagination)
	require.Len(t, page1, 2)
	assert.Equal(t, "c5", page1[0].CampaignID)
	assert.Equal(t, "c4", page1[1].CampaignID)
	require.Len(t, page3, 1)
	assert.Equal(t, "c1", page3[0].CampaignID)
}

func TestListCampaignsClampsPaging(t *testing.T) {
	svc := &ConversationService{CampaignRepo: &paginationCampaignRepo{}}

	_, pagination, err := svc.ListCampaigns(context.Background(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, pagination["page"])
	assert.Equal(t, 20, pagination["page_size"])
	assert.Equal(t, 1, pagination["total_pages"])

	_, pagination, err = svc.ListCampaigns(context.Background(), 1, 500)
	require.NoError(t, err)
	assert.Equal(t, 100, pagination["page_size"])
}

func newConversationService(t *testing.T) *ConversationService {
	t.Helper()
	conn := newTestDB(t)
	svc := &ConversationService{
		CampaignRepo: &repository.CampaignRepository{DB: conn},
		CustomerRepo: &repository.CustomerRepository{DB: conn},
		MessageRepo:  &repository.ChatMessageRepository{DB: conn},
	}
	require.NoError(t, svc.CampaignRepo.Create(context.Background(), &model.Campaign{
		CampaignID:      testCampaign,
		Name:            "Jazz Night",
		CampaignDetails: "Jazz night, Friday 7pm at the Rooftop",
		MessageTemplate: "Hi {first_name}, join us for Jazz Night this Friday!",
	}))
	return svc
}

func TestEnrollCustomerRecordsOpener(t *testing.T) {
	svc := newConversationService(t)
	ctx := context.Background()

	opener, err := svc.EnrollCustomer(ctx, EnrollRequest{
		PhoneNumber: "(412) 555-0123",
		FirstName:   "Amina",
		LastName:    "Otieno",
		CampaignID:  testCampaign,
	})
	require.NoError(t, err)
	require.NotNil(t, opener)
	assert.Equal(t, "Hi Amina, join us for Jazz Night this Friday!", opener.Message)
	assert.Equal(t, model.DirectionOutbound, opener.Direction)
	assert.Equal(t, testPhone, opener.PhoneNumber)

	customer, err := svc.CustomerRepo.GetByPhone(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, model.CustomerStatusAutomated, customer.Status)
	assert.Equal(t, testCampaign, customer.CampaignID())

	conversation, err := svc.Conversation(ctx, testPhone, "")
	require.NoError(t, err)
	require.Len(t, conversation, 1)
	assert.Equal(t, opener.ID, conversation[0].ID)
}

func TestEnrollCustomerFallsBackForUnknownName(t *testing.T) {
	svc := newConversationService(t)
	ctx := context.Background()
	_, err := svc.CustomerRepo.GetOrCreate(ctx, testPhone)
	require.NoError(t, err)

	opener, err := svc.EnrollCustomer(ctx, EnrollRequest{PhoneNumber: testPhone, CampaignID: testCampaign})
	require.NoError(t, err)
	assert.Equal(t, "Hi there, join us for Jazz Night this Friday!", opener.Message)
}

func TestEnrollCustomerWithoutTemplate(t *testing.T) {
	svc := newConversationService(t)
	ctx := context.Background()
	require.NoError(t, svc.CampaignRepo.Create(ctx, &model.Campaign{CampaignID: "camp-quiet", Name: "Quiet"}))

	opener, err := svc.EnrollCustomer(ctx, EnrollRequest{PhoneNumber: testPhone, CampaignID: "camp-quiet"})
	require.NoError(t, err)
	assert.Nil(t, opener)

	conversation, err := svc.Conversation(ctx, testPhone, "")
	require.NoError(t, err)
	assert.Empty(t, conversation)
}

func TestEnrollCustomerRejects(t *testing.T) {
	svc := newConversationService(t)
	ctx := context.Background()

	_, err := svc.EnrollCustomer(ctx, EnrollRequest{PhoneNumber: "nope", CampaignID: testCampaign})
	var invalid *appErrors.ErrInvalidPhoneNumber
	assert.ErrorAs(t, err, &invalid)

	_, err = svc.EnrollCustomer(ctx, EnrollRequest{PhoneNumber: testPhone, CampaignID: "missing"})
	var notFound *appErrors.ErrCampaignNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestSetCustomerStatus(t *testing.T) {
	svc := newConversationService(t)
	ctx := context.Background()
	_, err := svc.CustomerRepo.GetOrCreate(ctx, testPhone)
	require.NoError(t, err)

	customer, err := svc.SetCustomerStatus(ctx, "412-555-0123", model.CustomerStatusAgentResponding)
	require.NoError(t, err)
	assert.Equal(t, model.CustomerStatusAgentResponding, customer.Status)

	listed, err := svc.ListCustomers(ctx, model.CustomerStatusAgentResponding)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, testPhone, listed[0].PhoneNumber)

	automated, err := svc.ListCustomers(ctx, model.CustomerStatusAutomated)
	require.NoError(t, err)
	assert.Empty(t, automated)
}

func TestSetCustomerStatusErrors(t *testing.T) {
	svc := newConversationService(t)
	ctx := context.Background()

	_, err := svc.SetCustomerStatus(ctx, "bad", model.CustomerStatusAutomated)
	var invalidPhone *appErrors.ErrInvalidPhoneNumber
	assert.ErrorAs(t, err, &invalidPhone)

	_, err = svc.SetCustomerStatus(ctx, testPhone, "paused")
	var invalidStatus *appErrors.ErrInvalidStatus
	assert.ErrorAs(t, err, &invalidStatus)

	_, err = svc.SetCustomerStatus(ctx, testPhone, model.CustomerStatusAutomated)
	var notFound *appErrors.ErrCustomerNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "***-***-0123", notFound.MaskedPhone)

	_, err = svc.ListCustomers(ctx, "paused")
	assert.ErrorAs(t, err, &invalidStatus)
}

func TestConversationForExplicitCampaign(t *testing.T) {
	svc := newConversationService(t)
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, text := range []string{"first", "second"} {
		require.NoError(t, svc.MessageRepo.Add(ctx, &model.ChatMessage{
			PhoneNumber: testPhone,
			CampaignID:  model.StringPtr(testCampaign),
			Message:     text,
			Direction:   model.DirectionInbound,
			Timestamp:   base.Add(time.Duration(i) * time.Minute),
		}))
	}

	msgs, err := svc.Conversation(ctx, testPhone, testCampaign)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "first", msgs[0].Message)
	assert.Equal(t, "second", msgs[1].Message)

	_, err = svc.Conversation(ctx, "+12128675309", "")
	var notFound *appErrors.ErrCustomerNotFound
	assert.ErrorAs(t, err, &notFound)
}

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		want     string
	}{
		{"substitutes", "Hi {first_name} {last_name}", map[string]string{"first_name": "Amina", "last_name": "Otieno"}, "Hi Amina Otieno"},
		{"fallback for empty", "Hi {first_name}", map[string]string{"first_name": "", "": "there"}, "Hi there"},
		{"unknown placeholder kept", "Hi {nickname}", map[string]string{"first_name": "Amina"}, "Hi {nickname}"},
		{"no fallback", "Hi {first_name}!", map[string]string{"first_name": ""}, "Hi !"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RenderTemplate(tt.template, tt.data))
		})
	}
}
