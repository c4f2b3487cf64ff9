package agent

import "github.com/unclebandit/smsleopard-agent/internal/model"

// HistoryFromMessages turns a conversation, oldest first, into agent turns.
// The newest message is the one being answered and is left out, as are
// messages the safety filter flagged.
func HistoryFromMessages(msgs []*model.ChatMessage) []Turn {
	if len(msgs) == 0 {
		return nil
	}
	prior := msgs[:len(msgs)-1]

	turns := make([]Turn, 0, len(prior))
	for _, m := range prior {
		if m.Flagged() {
			continue
		}
		role := RoleAssistant
		if m.Direction == model.DirectionInbound {
			role = RoleUser
		}
		turns = append(turns, Turn{Role: role, Text: m.Message})
	}
	return turns
}

// conversationOpener stands in for the customer when the campaign message
// opened the conversation.
const conversationOpener = "(The conversation was started by the campaign message below.)"

// alternate merges consecutive turns from the same side and makes sure the
// conversation starts with the user, as the chat APIs require.
func alternate(history []Turn, prompt string) []Turn {
	all := make([]Turn, 0, len(history)+2)
	all = append(all, history...)
	all = append(all, Turn{Role: RoleUser, Text: prompt})

	if all[0].Role != RoleUser {
		all = append([]Turn{{Role: RoleUser, Text: conversationOpener}}, all...)
	}

	merged := make([]Turn, 0, len(all))
	for _, t := range all {
		if n := len(merged); n > 0 && merged[n-1].Role == t.Role {
			merged[n-1].Text += "\n" + t.Text
			continue
		}
		merged = append(merged, t)
	}
	return merged
}
