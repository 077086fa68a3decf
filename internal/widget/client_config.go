package widget

import (
	"strings"

	"github.com/smallbiznis/voiceassist/internal/config"
)

type Triggers struct {
	Delay        int     `json:"delay"`
	OnScroll     float64 `json:"on_scroll"`
	OnTime       int     `json:"on_time"`
	OnExitIntent bool    `json:"on_exit_intent"`
}

type Theme struct {
	Type           string `json:"type"`
	PrimaryColor   string `json:"primary_color"`
	SecondaryColor string `json:"secondary_color"`
}

type Tools struct {
	ShowProductCard       bool   `json:"show_product_card"`
	AddToCart             bool   `json:"add_to_cart"`
	SearchProducts        bool   `json:"search_products"`
	CartIntegrationMethod string `json:"cart_integration_method"`
}

// Config is what the browser receives to mount and drive the widget.
type Config struct {
	AgentID               string   `json:"agent_id"`
	Position              string   `json:"position"`
	Triggers              Triggers `json:"triggers"`
	Theme                 Theme    `json:"theme"`
	Tools                 Tools    `json:"tools"`
	MaxMessagesPerSession int64    `json:"max_messages_per_session"`
}

// ClientConfig falls back to defaultAgentID when the settings carry none.
func ClientConfig(settings config.WidgetSettings, defaultAgentID string) Config {
	agentID := strings.TrimSpace(settings.AgentID)
	if agentID == "" {
		agentID = strings.TrimSpace(defaultAgentID)
	}
	return Config{
		AgentID:  agentID,
		Position: settings.Position,
		Triggers: Triggers{
			Delay:        settings.TriggerDelay,
			OnScroll:     settings.TriggerOnScroll,
			OnTime:       settings.TriggerOnTime,
			OnExitIntent: settings.TriggerOnExitIntent,
		},
		Theme: Theme{
			Type:           settings.ThemeType,
			PrimaryColor:   settings.PrimaryColor,
			SecondaryColor: settings.SecondaryColor,
		},
		Tools: Tools{
			ShowProductCard:       settings.EnableShowProductCard,
			AddToCart:             settings.EnableAddToCart,
			SearchProducts:        settings.EnableSearchProducts,
			CartIntegrationMethod: settings.CartIntegrationMethod,
		},
		MaxMessagesPerSession: settings.MaxMessagesPerSession,
	}
}
