package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/yaziris/discured/internal/domain"
	"github.com/yaziris/discured/internal/present/rest/middleware"
	"github.com/yaziris/discured/internal/present/rest/presenter"
	"github.com/yaziris/discured/internal/service"
	"github.com/yaziris/discured/internal/usecase"
)

type Handler struct {
	config    domain.Config
	link      *usecase.LinkUsecase
	curate    *usecase.CurateUsecase
	reconcile *usecase.ReconcileUsecase
	sessions  *service.SessionService
	signal    *service.SignalService
	store     usecase.LinkStore
}

func NewHandler(
	config domain.Config,
	link *usecase.LinkUsecase,
	curate *usecase.CurateUsecase,
	reconcile *usecase.ReconcileUsecase,
	sessions *service.SessionService,
	signal *service.SignalService,
	store usecase.LinkStore,
) *Handler {
	return &Handler{
		config:    config,
		link:      link,
		curate:    curate,
		reconcile: reconcile,
		sessions:  sessions,
		signal:    signal,
		store:     store,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	auth := middleware.BearerAuth(h.config.Server.WebhookSecret)

	api := e.Group("/api/v1", auth)
	api.POST("/verify", h.handleVerifyBegin)
	api.POST("/verify/confirm", h.handleVerifyConfirm)
	api.POST("/verify/cancel", h.handleVerifyCancel)
	api.POST("/submissions", h.handleSubmission)
	api.POST("/reconcile", h.handleReconcile)

	e.GET("/healthz", h.handleHealthz)
	e.GET("/status", h.handleStatus)
	e.GET("/realtime", h.handleRealtime)
}

type verifyBeginRequest struct {
	ChatID  string `json:"chatID"`
	Account string `json:"account"`
}

type verifyBeginResponse struct {
	Status    string `json:"status"`
	Tag       string `json:"tag,omitempty"`
	Challenge string `json:"challenge,omitempty"`
	PayTo     string `json:"payTo,omitempty"`
	Account   string `json:"account,omitempty"`
}

func (h *Handler) handleVerifyBegin(c echo.Context) error {
	ctx := c.Request().Context()

	var req verifyBeginRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.ChatID == "" || req.Account == "" {
		return presenter.BadRequestMessage(c, "chatID and account are required")
	}

	account := usecase.NormalizeAccount(req.Account)
	challenge, err := h.link.Begin(ctx, req.ChatID, account)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyLinked) {
			return presenter.OK(c, verifyBeginResponse{Status: "already-linked", Account: account})
		}
		if errors.Is(err, domain.ErrConflict) {
			return presenter.Conflict(c, err.Error())
		}
		if errors.Is(err, domain.ErrNotFound) {
			return presenter.NotFound(c, err.Error())
		}
		return presenter.InternalError(c, err)
	}

	session, err := h.sessions.Start(req.ChatID, account, challenge)
	if err != nil {
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, verifyBeginResponse{
		Status:    "pending",
		Tag:       session.Tag,
		Challenge: challenge,
		PayTo:     h.config.Curation.Account,
	})
}

type verifyActionRequest struct {
	ChatID string `json:"chatID"`
	Tag    string `json:"tag"`
}

func (h *Handler) handleVerifyConfirm(c echo.Context) error {
	ctx := c.Request().Context()

	var req verifyActionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	session, err := h.sessions.Claim(req.Tag, req.ChatID)
	if err != nil {
		if errors.Is(err, service.ErrNotInitiator) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
		}
		return presenter.NotFound(c, err.Error())
	}

	state, err := h.link.Confirm(ctx, req.ChatID, session.Account)
	if err != nil {
		if errors.Is(err, domain.ErrVerification) {
			return presenter.BadRequestMessage(c, err.Error())
		}
		if errors.Is(err, domain.ErrConflict) {
			return presenter.Conflict(c, err.Error())
		}
		return presenter.InternalError(c, err)
	}
	return presenter.OK(c, echo.Map{
		"status":     "linked",
		"account":    state.Linked.Account,
		"privileged": state.Privileged,
	})
}

func (h *Handler) handleVerifyCancel(c echo.Context) error {
	var req verifyActionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}

	if err := h.sessions.Cancel(req.Tag, req.ChatID); err != nil {
		if errors.Is(err, service.ErrNotInitiator) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
		}
		return presenter.NotFound(c, err.Error())
	}
	return presenter.OK(c, echo.Map{"status": "cancelled"})
}

type submissionRequest struct {
	ChatID    string `json:"chatID"`
	ChannelID string `json:"channelID"`
	MessageID string `json:"messageID"`
	Text      string `json:"text"`
}

func (h *Handler) handleSubmission(c echo.Context) error {
	ctx := c.Request().Context()

	var req submissionRequest
	if err := c.Bind(&req); err != nil {
		return presenter.BadRequest(c, err)
	}
	if req.ChatID == "" || req.Text == "" {
		return presenter.BadRequestMessage(c, "chatID and text are required")
	}

	result, err := h.curate.Dispatch(ctx, usecase.Submission{
		ChatID:    req.ChatID,
		ChannelID: req.ChannelID,
		MessageID: req.MessageID,
		Text:      req.Text,
	})
	if err != nil {
		return presenter.InternalError(c, err)
	}

	resp := echo.Map{"status": dispatchStatusName(result.Status)}
	if result.Status == domain.DispatchEndorsed {
		resp["weight"] = result.Weight.String()
	}
	if result.Reply != "" {
		resp["reply"] = result.Reply
	}
	return presenter.OK(c, resp)
}

func dispatchStatusName(status domain.DispatchStatus) string {
	switch status {
	case domain.DispatchEndorsed:
		return "endorsed"
	case domain.DispatchRejected:
		return "rejected"
	default:
		return "ignored"
	}
}

// handleReconcile schedules a role sync outside the normal timer. The
// cycle runs in the background; a cycle already in flight stays the
// only one.
func (h *Handler) handleReconcile(c echo.Context) error {
	go func() {
		if _, err := h.reconcile.Reconcile(context.Background()); err != nil {
			if errors.Is(err, usecase.ErrCycleInProgress) {
				return
			}
			slog.Error(
				"manual reconciliation failed",
				slog.String("error", err.Error()),
				slog.String("module", "reconcile"),
			)
		}
	}()
	return c.JSON(http.StatusAccepted, echo.Map{"status": "scheduled"})
}

func (h *Handler) handleHealthz(c echo.Context) error {
	return presenter.OK(c, echo.Map{"status": "ok"})
}

func (h *Handler) handleStatus(c echo.Context) error {
	resp := echo.Map{
		"linkedAccounts": len(h.store.All()),
		"tokenSymbol":    h.config.Curation.TokenSymbol,
	}
	if report := h.reconcile.LastReport(); report != nil {
		resp["lastReconcile"] = report
	}
	return presenter.OK(c, resp)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type realtimeRequest struct {
	Type string `json:"type"`
}

// handleRealtime streams domain events to the connected operator. The
// client side only ever sends heartbeats; everything of substance
// flows outward.
func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "event stream disabled"})
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer func() {
		ws.Close()
	}()

	ctx := c.Request().Context()

	pubsub := h.signal.Subscribe(ctx)
	defer pubsub.Close()

	quit := make(chan struct{})

	go func() {
		defer close(quit)
		for {
			var req realtimeRequest
			err := ws.ReadJSON(&req)
			if err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if ok {
					if !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
						slog.DebugContext(
							ctx, "WebSocket closed",
							slog.String("error", wsErr.Error()),
							slog.String("module", "socket"),
						)
					}
				} else {
					slog.ErrorContext(
						ctx, "Error reading message",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}

			switch req.Type {
			case "h": // heartbeat
				// do nothing
			default:
				slog.InfoContext(
					ctx, "Unknown request type",
					slog.String("type", req.Type),
					slog.String("module", "socket"),
				)
			}
		}
	}()

	events := pubsub.Channel()
	for {
		select {
		case <-quit:
			return nil
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(
					ctx, "Malformed event payload",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				continue
			}
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
