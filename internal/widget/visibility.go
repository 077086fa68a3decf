// Package widget decides whether the storefront assistant is offered to a
// visitor and renders what the browser needs to mount it.
package widget

import (
	"slices"
	"strings"

	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
)

type Reason string

const (
	ReasonNone            Reason = ""
	ReasonDisabled        Reason = "disabled"
	ReasonLoginRequired   Reason = "login_required"
	ReasonDeviceFiltered  Reason = "device_filtered"
	ReasonPageHidden      Reason = "page_hidden"
	ReasonPageNotAllowed  Reason = "page_not_allowed"
	ReasonGeoRestricted   Reason = "geo_restricted"
	ReasonSegmentFiltered Reason = "segment_filtered"
	ReasonInternalError   Reason = "internal_error"
)

const segmentVIP = "vip"

type Visibility struct {
	Show   bool   `json:"show"`
	Reason Reason `json:"reason,omitempty"`
}

func hidden(reason Reason) Visibility { return Visibility{Reason: reason} }

// Evaluate applies the targeting rules in a fixed order and reports the first
// one that hides the widget. returning is true when the visitor has usage
// history from before today.
func Evaluate(settings config.WidgetSettings, visitor identity.Visitor, returning bool) Visibility {
	if !settings.Enabled {
		return hidden(ReasonDisabled)
	}
	if settings.ExcludePublicUsers && !visitor.Identity.IsAuthenticated() {
		return hidden(ReasonLoginRequired)
	}

	page := visitor.Page
	if page == "" {
		page = identity.PageType(visitor.Referrer)
	}
	if slices.Contains(settings.PagesToHide, page) {
		return hidden(ReasonPageHidden)
	}
	if len(settings.PagesToShow) > 0 && !slices.Contains(settings.PagesToShow, page) {
		return hidden(ReasonPageNotAllowed)
	}

	// Visitors whose country is unknown are not restricted.
	if country := strings.ToUpper(strings.TrimSpace(visitor.Country)); country != "" && len(settings.GeographicRestrictions) > 0 {
		if !slices.Contains(settings.GeographicRestrictions, country) {
			return hidden(ReasonGeoRestricted)
		}
	}

	switch settings.DeviceFiltering {
	case config.DeviceDesktop:
		if DeviceFromUserAgent(visitor.UserAgent) == DeviceMobile {
			return hidden(ReasonDeviceFiltered)
		}
	case config.DeviceMobile:
		if DeviceFromUserAgent(visitor.UserAgent) != DeviceMobile {
			return hidden(ReasonDeviceFiltered)
		}
	}

	if settings.ShowFirstTimeVisitorsOnly && returning {
		return hidden(ReasonSegmentFiltered)
	}
	if !segmentMatches(settings.CustomerSegmentTargeting, visitor.Segment, returning) {
		return hidden(ReasonSegmentFiltered)
	}

	return Visibility{Show: true}
}

func segmentMatches(target, segment string, returning bool) bool {
	switch target {
	case config.SegmentFirstTime:
		return !returning
	case config.SegmentReturning:
		return returning
	case config.SegmentVIP:
		return strings.EqualFold(strings.TrimSpace(segment), segmentVIP)
	case config.SegmentNone:
		return false
	default:
		return true
	}
}
