package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/voiceassist/internal/config"
	"github.com/smallbiznis/voiceassist/internal/identity"
	obscontext "github.com/smallbiznis/voiceassist/internal/observability/context"
)

// maxToolBodyBytes caps what the public tool routes read per request.
const maxToolBodyBytes = 1 << 20

const (
	ctxRPCID    = "jsonrpc_id"
	ctxVisitor  = "visitor"
	ctxSettings = "widget_settings"
)

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result"`
}

var nullID = json.RawMessage("null")

// JSONRPCEnvelope unwraps `{"jsonrpc":"2.0","params":{...}}` bodies so
// handlers bind the params directly. Replies to such requests are wrapped
// back by respond.
func JSONRPCEnvelope() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || c.Request.Body == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxToolBodyBytes))
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}

		payload := body
		var env rpcRequest
		if len(bytes.TrimSpace(body)) > 0 && json.Unmarshal(body, &env) == nil && env.JSONRPC == "2.0" {
			id := env.ID
			if len(bytes.TrimSpace(id)) == 0 {
				id = nullID
			}
			c.Set(ctxRPCID, id)

			payload = env.Params
			if trimmed := bytes.TrimSpace(payload); len(trimmed) == 0 || bytes.Equal(trimmed, nullID) {
				payload = []byte("{}")
			}
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(payload))
		c.Request.ContentLength = int64(len(payload))
		c.Next()
	}
}

// respond writes body as is, or inside a JSON-RPC result with status 200 when
// the request came in an envelope.
func respond(c *gin.Context, status int, body any) {
	if raw, ok := c.Get(ctxRPCID); ok {
		id, _ := raw.(json.RawMessage)
		if id == nil {
			id = nullID
		}
		c.JSON(http.StatusOK, rpcResponse{JSONRPC: "2.0", ID: id, Result: body})
		return
	}
	c.JSON(status, body)
}

// VisitorContext resolves who is calling and snapshots the widget settings
// once for the whole request.
func (s *Server) VisitorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := identity.ClientIP(c.Request.Header, c.Request.RemoteAddr)

		var authenticatedID string
		if header := strings.TrimSpace(s.cfg.Identity.UserHeader); header != "" {
			authenticatedID = c.GetHeader(header)
		}
		id := s.resolver.Resolve(authenticatedID, clientIP)

		visitor := identity.Visitor{
			Identity:  id,
			ClientIP:  clientIP,
			UserAgent: c.Request.UserAgent(),
			Referrer:  c.Request.Referer(),
		}
		if header := strings.TrimSpace(s.cfg.Identity.CountryHeader); header != "" {
			visitor.Country = strings.TrimSpace(c.GetHeader(header))
		}
		if header := strings.TrimSpace(s.cfg.Identity.SegmentHeader); header != "" {
			visitor.Segment = strings.TrimSpace(c.GetHeader(header))
		}

		c.Set(ctxVisitor, visitor)
		c.Set(ctxSettings, s.settings.Get())

		ctx := obscontext.WithActor(c.Request.Context(), string(id.Kind()), id.Key())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func visitorFrom(c *gin.Context) identity.Visitor {
	if raw, ok := c.Get(ctxVisitor); ok {
		if v, ok := raw.(identity.Visitor); ok {
			return v
		}
	}
	return identity.Visitor{}
}

func settingsFrom(c *gin.Context) config.WidgetSettings {
	if raw, ok := c.Get(ctxSettings); ok {
		if s, ok := raw.(config.WidgetSettings); ok {
			return s
		}
	}
	return config.DefaultWidgetSettings()
}

// bindOptionalJSON accepts an empty body as "no parameters".
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return ErrInvalidRequest
	}
	return nil
}
