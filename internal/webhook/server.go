package webhook

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/xaenox/relay-bot/internal/bot"
	"github.com/xaenox/relay-bot/internal/models"
	"github.com/xaenox/relay-bot/internal/storage"
	"go.uber.org/zap"
)

// inboundPayload is the provider's webhook shape. It is validated here and
// converted to the internal intake record so the pipeline never sees the
// external payload.
type inboundPayload struct {
	From            string `json:"from" validate:"required"`
	Body            string `json:"body"`
	AttachmentCount int    `json:"attachment_count" validate:"gte=0"`
	AttachmentType  string `json:"attachment_type"`
	AttachmentURL   string `json:"attachment_url" validate:"omitempty,url"`
	MessageID       string `json:"message_id"`
	SenderName      string `json:"sender_name"`
	Forwarded       bool   `json:"forwarded"`
}

func (p inboundPayload) toIntake() models.Intake {
	return models.Intake{
		Address:           p.From,
		Name:              p.SenderName,
		Body:              p.Body,
		ProviderMessageID: p.MessageID,
		AttachmentCount:   p.AttachmentCount,
		AttachmentType:    p.AttachmentType,
		AttachmentURL:     p.AttachmentURL,
		Forwarded:         p.Forwarded,
	}
}

type banPayload struct {
	Banned bool `json:"banned"`
}

type payloadValidator struct {
	validate *validator.Validate
}

func (v *payloadValidator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// Server is the inbound HTTP boundary: it acks webhooks immediately and
// hands each payload to the pipeline as an independent goroutine.
type Server struct {
	echo        *echo.Echo
	bot         *bot.Bot
	storage     storage.Storage
	verifyToken string
	adminToken  string
	logger      *zap.Logger
}

func NewServer(b *bot.Bot, store storage.Storage, verifyToken, adminToken string, logger *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Validator = &payloadValidator{validate: validator.New()}

	s := &Server{
		echo:        e,
		bot:         b,
		storage:     store,
		verifyToken: verifyToken,
		adminToken:  adminToken,
		logger:      logger,
	}

	e.GET("/healthz", s.handleHealth)
	e.GET("/webhook", s.handleVerify)
	e.POST("/webhook", s.handleInbound)
	e.POST("/admin/users/:address/ban", s.handleBan)

	return s
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleVerify answers the provider's subscription challenge.
func (s *Server) handleVerify(c echo.Context) error {
	if c.QueryParam("verify_token") != s.verifyToken {
		return c.NoContent(http.StatusForbidden)
	}
	return c.String(http.StatusOK, c.QueryParam("challenge"))
}

func (s *Server) handleInbound(c echo.Context) error {
	var payload inboundPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}
	if err := c.Validate(payload); err != nil {
		return err
	}

	// Ack before processing: the provider gets its 200 immediately and the
	// run proceeds with no caller-facing timeout pressure.
	go s.bot.HandleIntake(payload.toIntake())

	return c.NoContent(http.StatusOK)
}

func (s *Server) handleBan(c echo.Context) error {
	token := c.Request().Header.Get("X-Admin-Token")
	if s.adminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) != 1 {
		return c.NoContent(http.StatusForbidden)
	}

	var payload banPayload
	if err := c.Bind(&payload); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}

	address := c.Param("address")
	if err := s.storage.SetUserBanned(c.Request().Context(), address, payload.Banned); err != nil {
		s.logger.Error("Failed to update ban flag",
			zap.Error(err),
			zap.String("address", address))
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"address": address,
		"banned":  payload.Banned,
	})
}
