package relay

import "strings"

// Guard decides whether a (user, chat) identity may issue commands. The
// rule set is fixed for the process lifetime; there is no revocation.
type Guard struct {
	// AllowList holds opaque string identifiers. When non-empty, a match
	// on either the user id or the chat id grants access.
	AllowList []string
	// FallbackChatID grants access by chat id equality when the allow-list
	// is empty. No other path grants access.
	FallbackChatID string
}

func NewGuard(allowList []string, fallbackChatID string) *Guard {
	cleaned := make([]string, 0, len(allowList))
	for _, id := range allowList {
		if v := strings.TrimSpace(id); v != "" {
			cleaned = append(cleaned, v)
		}
	}
	return &Guard{AllowList: cleaned, FallbackChatID: strings.TrimSpace(fallbackChatID)}
}

func (g *Guard) IsAuthorized(userID, chatID string) bool {
	userID = strings.TrimSpace(userID)
	chatID = strings.TrimSpace(chatID)
	if len(g.AllowList) > 0 {
		for _, id := range g.AllowList {
			if id == userID || id == chatID {
				return true
			}
		}
		return false
	}
	return g.FallbackChatID != "" && chatID == g.FallbackChatID
}
