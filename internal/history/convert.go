package history

import (
	"encoding/json"

	"github.com/codex-agent/agentcore/internal/models"
)

// ToResponseItem converts a turn loop ConversationItem into the
// wire/rollout-facing ResponseItem shape, at the persistence boundary
// described in response_item.go and conversation.go's package docs.
//
// TurnStarted and TurnComplete markers have no ResponseItem counterpart
// (they exist only to delimit turns in the CLI-facing history query) and
// convert to ok=false.
func ToResponseItem(item models.ConversationItem) (models.ResponseItem, bool) {
	switch item.Type {
	case models.ItemTypeUserMessage:
		return models.ResponseItem{
			Type:    models.ResponseItemMessage,
			Role:    models.RoleUser,
			Content: []models.ContentPart{{Type: models.ContentInputText, Text: item.Content}},
		}, true
	case models.ItemTypeAssistantMessage:
		return models.ResponseItem{
			Type:    models.ResponseItemMessage,
			Role:    models.RoleAssistant,
			Content: []models.ContentPart{{Type: models.ContentOutputText, Text: item.Content}},
		}, true
	case models.ItemTypeModelSwitch:
		return models.ResponseItem{
			Type:    models.ResponseItemMessage,
			Role:    models.RoleSystem,
			Content: []models.ContentPart{{Type: models.ContentInputText, Text: item.Content}},
		}, true
	case models.ItemTypeFunctionCall:
		return models.ResponseItem{
			Type:      models.ResponseItemFunctionCall,
			CallID:    item.CallID,
			Name:      item.Name,
			Arguments: json.RawMessage(item.Arguments),
		}, true
	case models.ItemTypeFunctionCallOutput:
		out := models.ResponseItem{
			Type:   models.ResponseItemFunctionCallOut,
			CallID: item.CallID,
		}
		if item.Output != nil {
			out.Body = item.Output.Content
			out.Success = item.Output.Success
		}
		return out, true
	case models.ItemTypeTurnStarted, models.ItemTypeTurnComplete:
		return models.ResponseItem{}, false
	default:
		return models.ResponseItem{}, false
	}
}

// ToResponseItems converts a batch, dropping items with no ResponseItem
// counterpart.
func ToResponseItems(items []models.ConversationItem) []models.ResponseItem {
	out := make([]models.ResponseItem, 0, len(items))
	for _, item := range items {
		if ri, ok := ToResponseItem(item); ok {
			out = append(out, ri)
		}
	}
	return out
}
