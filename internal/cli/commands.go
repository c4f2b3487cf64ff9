package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	appErrors "github.com/unclebandit/smsleopard-agent/internal/errors"
	"github.com/unclebandit/smsleopard-agent/internal/model"
	"github.com/unclebandit/smsleopard-agent/internal/phone"
	"github.com/unclebandit/smsleopard-agent/internal/queue"
	"github.com/unclebandit/smsleopard-agent/internal/service"
)

func newChatCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <phone> <message>",
		Short: "Send a message as the customer and print the agent's reply",
		Long: `Store <message> as an inbound SMS from <phone>, run it through the agent
and print what would be sent back. The reply is recorded in the
conversation like a delivered SMS.

Examples:
  agentctl chat +14125550123 "What time does the show start?"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a := s.app
			if !phone.Validate(args[0]) {
				return appErrors.NewInvalidPhoneNumber(args[0])
			}
			normalized := phone.Normalize(args[0])

			if err := a.Queue.Subscribe(ctx, queue.TopicOutbound, a.Delivery.Handle); err != nil {
				return fmt.Errorf("subscribe delivery: %w", err)
			}

			customer, err := a.Customers.GetOrCreate(ctx, normalized)
			if err != nil {
				return fmt.Errorf("get customer: %w", err)
			}
			inbound := &model.ChatMessage{
				PhoneNumber: normalized,
				CampaignID:  customer.MostRecentCampaignID,
				Message:     args[1],
				Direction:   model.DirectionInbound,
			}
			if err := a.Messages.Add(ctx, inbound); err != nil {
				return fmt.Errorf("store message: %w", err)
			}

			result, err := a.Worker.Respond(ctx, service.InboundRequest{
				PhoneNumber: normalized,
				Message:     args[1],
				MessageID:   inbound.ID,
			})
			if result == nil {
				return err
			}
			if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
				return perr
			}
			return err
		},
	}
}

func newEnrollCmd(s *session) *cobra.Command {
	var firstName, lastName string
	cmd := &cobra.Command{
		Use:   "enroll <phone> <campaign-id>",
		Short: "Attach a contact to a campaign and record its opening message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opener, err := s.app.Conversations.EnrollCustomer(cmd.Context(), service.EnrollRequest{
				PhoneNumber: args[0],
				FirstName:   firstName,
				LastName:    lastName,
				CampaignID:  args[1],
			})
			if err != nil {
				return err
			}
			if opener == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Enrolled. Campaign has no opening message.")
				return nil
			}
			return printJSON(cmd.OutOrStdout(), opener)
		},
	}
	cmd.Flags().StringVar(&firstName, "first-name", "", "customer first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "customer last name")
	return cmd
}

func newStatusCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "status <phone> [automated|needs_response|agent_responding]",
		Short: "Show or change who owns a conversation",
		Long: `Without a status, print the customer record. With one, set it.

Setting agent_responding stops the agent from replying; setting automated
hands the conversation back.

Examples:
  agentctl status +14125550123
  agentctl status +14125550123 agent_responding`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 2 {
				customer, err := s.app.Conversations.SetCustomerStatus(ctx, args[0], model.CustomerStatus(args[1]))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), customer)
			}

			if !phone.Validate(args[0]) {
				return appErrors.NewInvalidPhoneNumber(args[0])
			}
			customer, err := s.app.Customers.GetByPhone(ctx, phone.Normalize(args[0]))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), customer)
		},
	}
}

func newHistoryCmd(s *session) *cobra.Command {
	var campaignID string
	cmd := &cobra.Command{
		Use:   "history <phone>",
		Short: "Print a conversation, oldest message first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := s.app.Conversations.Conversation(cmd.Context(), args[0], campaignID)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(msgs) == 0 {
				fmt.Fprintln(out, "No messages.")
				return nil
			}
			for _, m := range msgs {
				who := "customer"
				if m.Direction == model.DirectionOutbound {
					who = "agent"
				}
				flag := ""
				if m.Flagged() {
					flag = " [flagged]"
				}
				fmt.Fprintf(out, "%s  %-8s %s%s\n", m.Timestamp.Format("2006-01-02 15:04"), who, m.Message, flag)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&campaignID, "campaign", "c", "", "campaign id (defaults to the customer's most recent)")
	return cmd
}

func newCampaignsCmd(s *session) *cobra.Command {
	var page, pageSize int
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "List campaigns, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			campaigns, pagination, err := s.app.Conversations.ListCampaigns(cmd.Context(), page, pageSize)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, c := range campaigns {
				fmt.Fprintf(out, "%-24s %s\n", c.CampaignID, c.Name)
			}
			fmt.Fprintf(out, "page %d of %d (%d total)\n", pagination["page"], max(pagination["total_pages"], 1), pagination["total_count"])
			return nil
		},
	}
	cmd.Flags().IntVarP(&page, "page", "p", 1, "page number")
	cmd.Flags().IntVarP(&pageSize, "page-size", "n", 20, "campaigns per page")
	return cmd
}
