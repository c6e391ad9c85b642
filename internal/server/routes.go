package server

import (
	"github.com/samadriaz9/ZeroTraceGPT-Image-Creator/internal/server/handlers"
)

func (s *Server) registerRoutes() {
	r := s.engine

	r.GET("/health", handlers.Health)

	p := &handlers.PromptHandler{Assistant: s.assistant, Unavailable: s.assistantErr}
	v1 := r.Group("/v1/prompts")
	v1.POST("/enhance", p.Enhance)
	v1.POST("/improve", p.Improve)
	v1.POST("/alternatives", p.Alternatives)

	webui := &handlers.WebUIHandler{
		URL:        s.cfg.WebUIURL(),
		HealthPath: s.cfg.WebUI.HealthPath,
	}
	r.GET("/api/webui/status", webui.Status)
}
