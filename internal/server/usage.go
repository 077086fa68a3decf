package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	"github.com/smallbiznis/voiceassist/internal/limit"
	obscontext "github.com/smallbiznis/voiceassist/internal/observability/context"
	"github.com/smallbiznis/voiceassist/internal/observability/logger"
	usagedomain "github.com/smallbiznis/voiceassist/internal/usage/domain"
	"github.com/smallbiznis/voiceassist/internal/widget"
	"go.uber.org/zap"
)

type usageRequest struct {
	SessionID      string         `json:"session_id" form:"session_id"`
	ConversationID string         `json:"conversation_id" form:"conversation_id"`
	PageURL        string         `json:"page_url" form:"page_url"`
	Metadata       map[string]any `json:"metadata"`
}

func (r usageRequest) sessionID() string {
	if id := strings.TrimSpace(r.SessionID); id != "" {
		return id
	}
	return strings.TrimSpace(r.ConversationID)
}

type identityView struct {
	UserType     string `json:"user_type"`
	UserID       string `json:"user_id,omitempty"`
	PublicUserID string `json:"public_user_id,omitempty"`
	IdentityKey  string `json:"identity_key"`
}

func newIdentityView(id identity.Identity) identityView {
	userType := "anonymous"
	if id.IsAuthenticated() {
		userType = "authenticated"
	}
	return identityView{
		UserType:     userType,
		UserID:       id.UserID(),
		PublicUserID: id.PublicUserID(),
		IdentityKey:  id.Key(),
	}
}

func (s *Server) bindUsageRequest(c *gin.Context) (usageRequest, error) {
	var req usageRequest
	if c.Request.Method == http.MethodGet {
		if err := c.ShouldBindQuery(&req); err != nil {
			return req, ErrInvalidRequest
		}
	} else if err := bindOptionalJSON(c, &req); err != nil {
		return req, err
	}

	if sessionID := req.sessionID(); sessionID != "" {
		ctx := obscontext.WithSessionID(c.Request.Context(), sessionID)
		c.Request = c.Request.WithContext(ctx)
	}
	return req, nil
}

func limitRequest(visitor identity.Visitor, sessionID string, settings config.WidgetSettings) usagedomain.CheckRequest {
	return usagedomain.CheckRequest{
		Identity:  visitor.Identity,
		SessionID: sessionID,
		Limits:    limit.LimitsFromSettings(settings),
	}
}

// checkLimits reads the limits without side effects.
func (s *Server) checkLimits(c *gin.Context, visitor identity.Visitor, sessionID string, settings config.WidgetSettings) limit.Decision {
	return s.usagesvc.CheckLimits(c.Request.Context(), limitRequest(visitor, sessionID, settings))
}

// admitMessage gates a message that is about to be counted and aborts the
// request when a limit refuses it.
func (s *Server) admitMessage(c *gin.Context, visitor identity.Visitor, sessionID string) bool {
	decision := s.usagesvc.Admit(c.Request.Context(), limitRequest(visitor, sessionID, settingsFrom(c)))
	if decision.Allowed {
		return true
	}
	c.Set("limit_reason", string(decision.Reason))
	AbortWithError(c, &LimitExceededError{Decision: decision})
	return false
}

func (s *Server) CheckLimits(c *gin.Context) {
	req, err := s.bindUsageRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	visitor := visitorFrom(c)
	decision := s.checkLimits(c, visitor, req.sessionID(), settingsFrom(c))

	respond(c, http.StatusOK, gin.H{
		"success":  true,
		"allowed":  decision.Allowed,
		"reason":   decision.Reason,
		"limits":   decision,
		"identity": newIdentityView(visitor.Identity),
	})
}

// SessionStart counts the opening message of a conversation once the limits
// allow it.
func (s *Server) SessionStart(c *gin.Context) {
	result, _, ok := s.startSession(c)
	if !ok {
		return
	}

	respond(c, http.StatusOK, gin.H{
		"success":       true,
		"session_id":    result.Record.SessionID,
		"record_id":     result.Record.ID.String(),
		"message_count": result.Record.MessageCount,
		"created":       result.Created,
	})
}

// SessionRecord is SessionStart for the widget bootstrap flow; it also
// reports the limits as they stand after counting.
func (s *Server) SessionRecord(c *gin.Context) {
	result, visitor, ok := s.startSession(c)
	if !ok {
		return
	}

	after := s.checkLimits(c, visitor, result.Record.SessionID, settingsFrom(c))
	respond(c, http.StatusOK, gin.H{
		"success":       true,
		"session_id":    result.Record.SessionID,
		"record_id":     result.Record.ID.String(),
		"message_count": result.Record.MessageCount,
		"created":       result.Created,
		"limits":        after,
		"identity":      newIdentityView(visitor.Identity),
	})
}

func (s *Server) startSession(c *gin.Context) (*usagedomain.StartResult, identity.Visitor, bool) {
	visitor := visitorFrom(c)
	req, err := s.bindUsageRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return nil, visitor, false
	}
	sessionID := req.sessionID()
	if sessionID == "" {
		AbortWithError(c, usagedomain.ErrInvalidSessionID)
		return nil, visitor, false
	}

	if !s.admitMessage(c, visitor, sessionID) {
		return nil, visitor, false
	}

	ctx := c.Request.Context()
	result, err := s.usagesvc.RecordStart(ctx, usagedomain.StartRequest{
		SessionID: sessionID,
		Identity:  visitor.Identity,
		IPAddress: visitor.ClientIP,
		UserAgent: visitor.UserAgent,
		Referrer:  firstNonEmpty(req.PageURL, visitor.Referrer),
		Metadata:  req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return nil, visitor, false
	}

	return result, visitor, true
}

func (s *Server) RecordMessage(c *gin.Context) {
	req, err := s.bindUsageRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sessionID := req.sessionID()
	if sessionID == "" {
		AbortWithError(c, usagedomain.ErrInvalidSessionID)
		return
	}

	if !s.admitMessage(c, visitorFrom(c), sessionID) {
		return
	}

	count, err := s.usagesvc.RecordMessage(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"success":       true,
		"session_id":    sessionID,
		"message_count": count,
	})
}

func (s *Server) SessionEnd(c *gin.Context) {
	req, err := s.bindUsageRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	sessionID := req.sessionID()
	if sessionID == "" {
		AbortWithError(c, usagedomain.ErrInvalidSessionID)
		return
	}

	found, err := s.usagesvc.EndSession(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !found {
		AbortWithError(c, usagedomain.ErrSessionNotFound)
		return
	}

	respond(c, http.StatusOK, gin.H{
		"success":    true,
		"session_id": sessionID,
		"ended":      true,
	})
}

func (s *Server) ClientIP(c *gin.Context) {
	visitor := visitorFrom(c)
	respond(c, http.StatusOK, gin.H{
		"success":  true,
		"ip":       visitor.ClientIP,
		"identity": newIdentityView(visitor.Identity),
	})
}

// SessionInit tells the widget whether to mount and how to configure itself.
func (s *Server) SessionInit(c *gin.Context) {
	req, err := s.bindUsageRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	settings := settingsFrom(c)
	visibility, decision := s.evaluateWidget(c, req, settings)
	visitor := visitorFrom(c)

	respond(c, http.StatusOK, gin.H{
		"success":       true,
		"canShowWidget": visibility.Show && decision.Allowed,
		"visibility":    visibility,
		"limits":        decision,
		"session_id":    req.sessionID(),
		"identity":      newIdentityView(visitor.Identity),
		"config":        widget.ClientConfig(settings, s.cfg.Widget.DefaultAgentID),
	})
}

func (s *Server) SessionCheck(c *gin.Context) {
	req, err := s.bindUsageRequest(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	visibility, decision := s.evaluateWidget(c, req, settingsFrom(c))
	respond(c, http.StatusOK, gin.H{
		"success":       true,
		"canShowWidget": visibility.Show && decision.Allowed,
		"visibility":    visibility,
		"limits":        decision,
	})
}

// evaluateWidget fails closed: a ledger error hides the widget.
func (s *Server) evaluateWidget(c *gin.Context, req usageRequest, settings config.WidgetSettings) (widget.Visibility, limit.Decision) {
	ctx := c.Request.Context()
	visitor := visitorFrom(c)
	if req.PageURL != "" {
		visitor.Page = identity.PageType(req.PageURL)
	}

	returning, err := s.usagesvc.IsReturning(ctx, visitor.Identity)
	if err != nil {
		logger.FromContext(ctx).Warn("returning visitor lookup failed", zap.Error(err))
		return widget.Visibility{Reason: widget.ReasonInternalError}, limit.FailClosed()
	}

	visibility := widget.Evaluate(settings, visitor, returning)
	decision := s.checkLimits(c, visitor, req.sessionID(), settings)
	return visibility, decision
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
