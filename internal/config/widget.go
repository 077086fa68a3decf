package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PositionBottomRight = "bottom-right"
	PositionBottomLeft  = "bottom-left"
	PositionTopRight    = "top-right"
	PositionTopLeft     = "top-left"

	CartDirectAdd = "direct_add"
	CartRedirect  = "redirect"

	DeviceAll     = "all"
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"

	SegmentAll       = "all"
	SegmentFirstTime = "first_time"
	SegmentReturning = "returning"
	SegmentVIP       = "vip"
	SegmentNone      = "none"

	OutOfStockHide             = "hide"
	OutOfStockShowDisabled     = "show_disabled"
	OutOfStockShowNotification = "show_with_notification"

	ThemeLight = "light"
	ThemeDark  = "dark"
)

// WidgetSettings is the operator-facing configuration of the storefront assistant.
// Handlers take one snapshot per request and pass it down.
type WidgetSettings struct {
	Enabled  bool   `mapstructure:"enabled"`
	AgentID  string `mapstructure:"agent_id"`
	Position string `mapstructure:"widget_position"`

	TriggerDelay              int     `mapstructure:"trigger_delay"`
	TriggerOnScroll           float64 `mapstructure:"trigger_on_scroll"`
	TriggerOnTime             int     `mapstructure:"trigger_on_time"`
	TriggerOnExitIntent       bool    `mapstructure:"trigger_on_exit_intent"`
	ShowFirstTimeVisitorsOnly bool    `mapstructure:"show_first_time_visitors_only"`

	EnableShowProductCard bool   `mapstructure:"enable_show_product_card"`
	EnableAddToCart       bool   `mapstructure:"enable_add_to_cart"`
	EnableSearchProducts  bool   `mapstructure:"enable_search_products"`
	CartIntegrationMethod string `mapstructure:"cart_integration_method"`

	GeographicRestrictions   []string `mapstructure:"geographic_restrictions"`
	DeviceFiltering          string   `mapstructure:"device_filtering"`
	CustomerSegmentTargeting string   `mapstructure:"customer_segment_targeting"`
	ExcludePublicUsers       bool     `mapstructure:"exclude_public_users"`

	MaxMessagesPerSession        int64 `mapstructure:"max_messages_per_session"`
	DailyUsageLimit              int64 `mapstructure:"daily_usage_limit"`
	GlobalUsageLimit             int64 `mapstructure:"global_usage_limit"`
	ConversationHistoryRetention int   `mapstructure:"conversation_history_retention"`
	AutoEndInactiveConversations bool  `mapstructure:"auto_end_inactive_conversations"`
	EnableConversationLogging    bool  `mapstructure:"enable_conversation_logging"`

	ProductCategoriesInclude []string `mapstructure:"product_categories_include"`
	ProductCategoriesExclude []string `mapstructure:"product_categories_exclude"`
	FeaturedProductsPriority []int64  `mapstructure:"featured_products_priority"`
	OutOfStockHandling       string   `mapstructure:"out_of_stock_handling"`

	PagesToShow []string `mapstructure:"pages_to_show"`
	PagesToHide []string `mapstructure:"pages_to_hide"`

	ThemeType      string `mapstructure:"theme_type"`
	PrimaryColor   string `mapstructure:"primary_color"`
	SecondaryColor string `mapstructure:"secondary_color"`
}

func DefaultWidgetSettings() WidgetSettings {
	return WidgetSettings{
		Enabled:                      true,
		Position:                     PositionBottomRight,
		EnableShowProductCard:        true,
		EnableAddToCart:              true,
		EnableSearchProducts:         true,
		CartIntegrationMethod:        CartDirectAdd,
		DeviceFiltering:              DeviceAll,
		CustomerSegmentTargeting:     SegmentAll,
		ConversationHistoryRetention: 24,
		AutoEndInactiveConversations: true,
		OutOfStockHandling:           OutOfStockHide,
		ThemeType:                    ThemeLight,
		PrimaryColor:                 "#667eea",
		SecondaryColor:               "#764ba2",
	}
}

var hexColorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Validate rejects settings outside the recognized option sets.
func (s WidgetSettings) Validate() error {
	if !oneOf(s.Position, PositionBottomRight, PositionBottomLeft, PositionTopRight, PositionTopLeft) {
		return fmt.Errorf("widget_position %q is not supported", s.Position)
	}
	if !oneOf(s.CartIntegrationMethod, CartDirectAdd, CartRedirect) {
		return fmt.Errorf("cart_integration_method %q is not supported", s.CartIntegrationMethod)
	}
	if !oneOf(s.DeviceFiltering, DeviceAll, DeviceDesktop, DeviceMobile) {
		return fmt.Errorf("device_filtering %q is not supported", s.DeviceFiltering)
	}
	if !oneOf(s.CustomerSegmentTargeting, SegmentAll, SegmentFirstTime, SegmentReturning, SegmentVIP, SegmentNone) {
		return fmt.Errorf("customer_segment_targeting %q is not supported", s.CustomerSegmentTargeting)
	}
	if !oneOf(s.OutOfStockHandling, OutOfStockHide, OutOfStockShowDisabled, OutOfStockShowNotification) {
		return fmt.Errorf("out_of_stock_handling %q is not supported", s.OutOfStockHandling)
	}
	if !oneOf(s.ThemeType, ThemeLight, ThemeDark) {
		return fmt.Errorf("theme_type %q is not supported", s.ThemeType)
	}
	if s.MaxMessagesPerSession < 0 || s.DailyUsageLimit < 0 || s.GlobalUsageLimit < 0 {
		return errors.New("usage limits cannot be negative")
	}
	if s.TriggerDelay < 0 || s.TriggerOnTime < 0 || s.TriggerOnScroll < 0 || s.TriggerOnScroll > 100 {
		return errors.New("trigger values out of range")
	}
	for _, color := range []string{s.PrimaryColor, s.SecondaryColor} {
		if !hexColorPattern.MatchString(color) {
			return fmt.Errorf("color %q is not a hex color", color)
		}
	}
	return nil
}

func (s WidgetSettings) normalized() WidgetSettings {
	s.AgentID = strings.TrimSpace(s.AgentID)
	s.Position = strings.ToLower(strings.TrimSpace(s.Position))
	s.CartIntegrationMethod = strings.ToLower(strings.TrimSpace(s.CartIntegrationMethod))
	s.DeviceFiltering = strings.ToLower(strings.TrimSpace(s.DeviceFiltering))
	s.CustomerSegmentTargeting = strings.ToLower(strings.TrimSpace(s.CustomerSegmentTargeting))
	s.OutOfStockHandling = strings.ToLower(strings.TrimSpace(s.OutOfStockHandling))
	s.ThemeType = strings.ToLower(strings.TrimSpace(s.ThemeType))
	s.GeographicRestrictions = cleanList(s.GeographicRestrictions, strings.ToUpper)
	s.ProductCategoriesInclude = cleanList(s.ProductCategoriesInclude, nil)
	s.ProductCategoriesExclude = cleanList(s.ProductCategoriesExclude, nil)
	s.PagesToShow = cleanList(s.PagesToShow, strings.ToLower)
	s.PagesToHide = cleanList(s.PagesToHide, strings.ToLower)
	return s
}

// WidgetSettingsHolder keeps the latest valid settings and swaps them on file change.
type WidgetSettingsHolder struct {
	current atomic.Value // holds WidgetSettings
}

// NewStaticWidgetSettingsHolder returns a holder that never reloads.
func NewStaticWidgetSettingsHolder(settings WidgetSettings) *WidgetSettingsHolder {
	holder := &WidgetSettingsHolder{}
	holder.current.Store(settings.normalized())
	return holder
}

func NewWidgetSettingsHolder(cfg Config, log *zap.Logger) (*WidgetSettingsHolder, error) {
	log = log.Named("config.widget")
	v := viper.New()

	v.SetConfigName(cfg.Widget.ConfigName)
	v.SetConfigType("yml")
	if cfg.Widget.ConfigPath != "" {
		v.AddConfigPath(cfg.Widget.ConfigPath)
	}
	v.AddConfigPath("/var/lib/voiceassist/config")
	v.AddConfigPath("/etc/voiceassist")
	v.AddConfigPath(".")

	v.SetEnvPrefix("VOICEASSIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setWidgetDefaults(v, DefaultWidgetSettings())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		log.Info("widget config file not found, using defaults")
	}

	settings, err := decodeWidgetSettings(v)
	if err != nil {
		return nil, err
	}

	holder := &WidgetSettingsHolder{}
	holder.current.Store(settings)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeWidgetSettings(v)
		if err != nil {
			log.Warn("invalid widget config ignored", zap.String("file", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("widget config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *WidgetSettingsHolder) Get() WidgetSettings {
	return h.current.Load().(WidgetSettings)
}

// decodeWidgetSettings resolves every widget.* key on its own so file values,
// VOICEASSIST_WIDGET_* env overrides and defaults merge per key.
func decodeWidgetSettings(v *viper.Viper) (WidgetSettings, error) {
	var file struct {
		Widget WidgetSettings `mapstructure:"widget"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return WidgetSettings{}, err
	}
	settings := file.Widget.normalized()
	if err := settings.Validate(); err != nil {
		return WidgetSettings{}, err
	}
	return settings, nil
}

func setWidgetDefaults(v *viper.Viper, d WidgetSettings) {
	v.SetDefault("widget.enabled", d.Enabled)
	v.SetDefault("widget.agent_id", d.AgentID)
	v.SetDefault("widget.widget_position", d.Position)
	v.SetDefault("widget.trigger_delay", d.TriggerDelay)
	v.SetDefault("widget.trigger_on_scroll", d.TriggerOnScroll)
	v.SetDefault("widget.trigger_on_time", d.TriggerOnTime)
	v.SetDefault("widget.trigger_on_exit_intent", d.TriggerOnExitIntent)
	v.SetDefault("widget.show_first_time_visitors_only", d.ShowFirstTimeVisitorsOnly)
	v.SetDefault("widget.enable_show_product_card", d.EnableShowProductCard)
	v.SetDefault("widget.enable_add_to_cart", d.EnableAddToCart)
	v.SetDefault("widget.enable_search_products", d.EnableSearchProducts)
	v.SetDefault("widget.cart_integration_method", d.CartIntegrationMethod)
	v.SetDefault("widget.device_filtering", d.DeviceFiltering)
	v.SetDefault("widget.customer_segment_targeting", d.CustomerSegmentTargeting)
	v.SetDefault("widget.exclude_public_users", d.ExcludePublicUsers)
	v.SetDefault("widget.max_messages_per_session", d.MaxMessagesPerSession)
	v.SetDefault("widget.daily_usage_limit", d.DailyUsageLimit)
	v.SetDefault("widget.global_usage_limit", d.GlobalUsageLimit)
	v.SetDefault("widget.conversation_history_retention", d.ConversationHistoryRetention)
	v.SetDefault("widget.auto_end_inactive_conversations", d.AutoEndInactiveConversations)
	v.SetDefault("widget.enable_conversation_logging", d.EnableConversationLogging)
	v.SetDefault("widget.out_of_stock_handling", d.OutOfStockHandling)
	v.SetDefault("widget.theme_type", d.ThemeType)
	v.SetDefault("widget.primary_color", d.PrimaryColor)
	v.SetDefault("widget.secondary_color", d.SecondaryColor)
}

func oneOf(value string, allowed ...string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

func cleanList(items []string, transform func(string) string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if transform != nil {
				part = transform(part)
			}
			out = append(out, part)
		}
	}
	return out
}
