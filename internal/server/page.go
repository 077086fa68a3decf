package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) AssistantPage(c *gin.Context) {
	html, err := s.page.Render(settingsFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}
