package feedback

// Style classes understood by the host editor's highlight renderer.
const (
	StyleActive       = "highlight-active"
	StyleSuggestion   = "highlight-suggestion"
	StyleSuggestionAI = "highlight-suggestion-ai"
	StyleComment      = "highlight-comment"
	StyleCommentAI    = "highlight-comment-ai"
	StyleSelection    = "highlight-selection"
)

// HighlightSpec asks the editor to style every exact occurrence of MatchText.
type HighlightSpec struct {
	MatchText  string `json:"match_text"`
	StyleClass string `json:"style_class"`
}

// Project maps items to highlight specs in input order. When activeID is nil and
// currentSelection is non-empty, one extra spec for the pending selection is
// appended. Duplicate match texts are emitted as-is.
func Project(items []Item, activeID *ID, currentSelection string) []HighlightSpec {
	specs := make([]HighlightSpec, 0, len(items)+1)
	for _, item := range items {
		specs = append(specs, HighlightSpec{
			MatchText:  item.SelectedText,
			StyleClass: styleFor(item, activeID),
		})
	}
	if activeID == nil && currentSelection != "" {
		specs = append(specs, HighlightSpec{MatchText: currentSelection, StyleClass: StyleSelection})
	}
	return specs
}

func styleFor(item Item, activeID *ID) string {
	if activeID != nil && item.ID == *activeID {
		return StyleActive
	}
	automated := item.Author.IsAutomated()
	switch item.Type {
	case TypeSuggestion:
		if automated {
			return StyleSuggestionAI
		}
		return StyleSuggestion
	default:
		if automated {
			return StyleCommentAI
		}
		return StyleComment
	}
}
