package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/eurocup-agent/server/internal/agent/graph"
	"github.com/eurocup-agent/server/internal/agent/model"
	logx "github.com/eurocup-agent/server/pkg/logger"
)

// ApologyMessage is the fixed reply when the answer pipeline fails. Raw
// errors never reach the user; the HTTP status stays 200 so chat clients
// render it as a normal turn.
const ApologyMessage = "I'm sorry, I'm having trouble answering right now. Please try again in a moment."

// Config holds the HTTP surface configuration.
type Config struct {
	Port           string `envconfig:"SERVER_PORT" default:"8080"`
	AllowedOrigins string `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

type messageRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
	Country   string `json:"country"`
}

type messageResponse struct {
	Output    string `json:"output"`
	SessionID string `json:"session_id"`
}

type feedbackRequest struct {
	SessionID string `json:"session_id"`
	Score     int    `json:"score"`
	Comment   string `json:"comment"`
}

// Server is the HTTP surface in front of the answer graph.
type Server struct {
	echo     *echo.Echo
	runner   graph.Runner
	notifier *TelegramNotifier
	cfg      Config
}

func New(runner graph.Runner, notifier *TelegramNotifier, cfg Config) *Server {
	s := &Server{
		echo:     echo.New(),
		runner:   runner,
		notifier: notifier,
		cfg:      cfg,
	}
	s.echo.Use(corsMiddleware(cfg.AllowedOrigins))
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.health)
	s.echo.POST("/message", s.handleMessage)
	s.echo.POST("/feedback", s.handleFeedback)
}

// Start blocks serving HTTP until the listener fails.
func (s *Server) Start() error {
	addr := ":" + s.cfg.Port
	logx.Info().Str("addr", addr).Msg("HTTP server listening")
	return s.echo.Start(addr)
}

func (s *Server) health(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMessage(c *echo.Context) error {
	var req messageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Question) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "question is required")
	}
	if strings.TrimSpace(req.SessionID) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	answer, err := s.runner.Invoke(c.Request().Context(), model.QueryInput{
		Question:  req.Question,
		SessionID: req.SessionID,
		Country:   req.Country,
	})
	if err != nil {
		logx.Error().Err(err).Str("session_id", req.SessionID).Msg("answer pipeline failed")
		answer = ApologyMessage
	}

	return c.JSON(http.StatusOK, messageResponse{Output: answer, SessionID: req.SessionID})
}

func (s *Server) handleFeedback(c *echo.Context) error {
	var req feedbackRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Comment) == "" && req.Score == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "feedback is empty")
	}

	if s.notifier != nil {
		if err := s.notifier.SendFeedback(c.Request().Context(), req.SessionID, req.Score, req.Comment); err != nil {
			logx.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to forward feedback")
			return echo.NewHTTPError(http.StatusBadGateway, "could not deliver feedback")
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "received"})
}

// corsMiddleware is intentionally minimal: a configurable comma-separated
// origin list and the two methods this API serves. The response echoes the
// request's Origin when it is on the list, never the raw configured string.
func corsMiddleware(allowedOrigins string) echo.MiddlewareFunc {
	allowAny := false
	allowed := map[string]bool{}
	for _, o := range strings.Split(allowedOrigins, ",") {
		o = strings.TrimSpace(o)
		if o == "*" {
			allowAny = true
		} else if o != "" {
			allowed[o] = true
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			h := c.Response().Header()
			origin := c.Request().Header.Get("Origin")
			switch {
			case allowAny:
				h.Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Vary", "Origin")
			}
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusNoContent)
			}
			return next(c)
		}
	}
}
