package relay

import (
	"fmt"
	"strings"
)

// Callback purposes carried in inline-button data as "<purpose>:<token>".
const (
	CallbackPersonal = "personal"
	CallbackGroup    = "group"
	// callbackSessionLegacy is accepted on inbound callbacks from older
	// deployments and treated as personal.
	callbackSessionLegacy = "session"
)

// Formatter renders a notification plus its session token into outbound
// message text with reply buttons.
type Formatter struct {
	// BotName, when set, is shown in the reply hint so users know which
	// bot to address. Comes from config override or getMe.
	BotName string
}

func (f Formatter) Format(n Notification, token string) Outbound {
	var b strings.Builder
	if strings.TrimSpace(n.Project) != "" {
		fmt.Fprintf(&b, "[%s]\n", strings.TrimSpace(n.Project))
	}
	b.WriteString(strings.TrimSpace(n.Message))
	if excerpt := strings.TrimSpace(n.Excerpt); excerpt != "" {
		b.WriteString("\n\n")
		b.WriteString(excerpt)
	}
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Reply with: %s <command>", token)
	if f.BotName != "" {
		fmt.Fprintf(&b, " (@%s)", f.BotName)
	}

	return Outbound{
		Text: b.String(),
		Buttons: []Button{
			{Label: "Reply here", CallbackData: CallbackPersonal + ":" + token},
			{Label: "Reply in group", CallbackData: CallbackGroup + ":" + token},
		},
	}
}

// parseCallbackData splits "<purpose>:<token>" and normalizes the legacy
// session purpose. ok is false for unrecognized shapes.
func parseCallbackData(data string) (purpose, token string, ok bool) {
	parts := strings.SplitN(strings.TrimSpace(data), ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	purpose = strings.ToLower(strings.TrimSpace(parts[0]))
	token = strings.ToUpper(strings.TrimSpace(parts[1]))
	if token == "" {
		return "", "", false
	}
	switch purpose {
	case CallbackPersonal, CallbackGroup:
		return purpose, token, true
	case callbackSessionLegacy:
		return CallbackPersonal, token, true
	default:
		return "", "", false
	}
}
