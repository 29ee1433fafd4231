package usecases

import "github.com/0xcro3dile/docqa-go/internal/domain/entities"

// NormalizeHistory drops every turn before the first user turn.
// A history without any user turn normalizes to empty. The input is not modified.
func NormalizeHistory(history entities.ConversationHistory) entities.ConversationHistory {
	for i, turn := range history {
		if turn.Role == entities.RoleUser {
			out := make(entities.ConversationHistory, len(history)-i)
			copy(out, history[i:])
			return out
		}
	}
	return entities.ConversationHistory{}
}

// validateHistory rejects turns with roles outside the enumerated set.
func validateHistory(history entities.ConversationHistory) error {
	for _, turn := range history {
		if !turn.Role.Valid() {
			return invalidInput("validating history", "unknown conversation role "+string(turn.Role))
		}
	}
	return nil
}
