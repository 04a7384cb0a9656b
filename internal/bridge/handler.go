package bridge

import (
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/pose-bridge/internal/history"
	"github.com/eleven-am/pose-bridge/internal/pose"
)

const defaultFrameLimit = 100

type Handler struct {
	manager *Manager
	store   *history.Store
	limiter echo.MiddlewareFunc
	log     *slog.Logger
}

func NewHandler(manager *Manager, store *history.Store, limits RateLimiterConfig, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		manager: manager,
		store:   store,
		limiter: RateLimiter(limits),
		log:     log.With("component", "bridge-handler"),
	}
}

type CreateChannelResponse struct {
	ChannelID string `json:"channel_id"`
}

type ChannelStatusResponse struct {
	ChannelID string    `json:"channel_id"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	Delivered uint64    `json:"delivered"`
	Dropped   uint64    `json:"dropped"`
}

type FramesResponse struct {
	ChannelID string               `json:"channel_id"`
	Frames    []pose.LandmarkFrame `json:"frames"`
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/channels", h.HandleCreateChannel, h.limiter)
	g.GET("/channels/:id", h.HandleChannelStatus)
	g.DELETE("/channels/:id", h.HandleDeleteChannel)
	g.POST("/channels/:id/call", h.HandleCall, h.limiter)
	g.GET("/channels/:id/events", h.HandleEvents)
	g.GET("/channels/:id/frames", h.HandleFrames)
}

// @Summary      Create a channel
// @Description  Creates a pose session channel and returns its ID
// @Tags         channels
// @Produce      json
// @Success      201  {object}  CreateChannelResponse
// @Failure      429  {object}  CallError
// @Router       /v1/channels [post]
func (h *Handler) HandleCreateChannel(c echo.Context) error {
	ch := h.manager.CreateChannel()
	return c.JSON(http.StatusCreated, CreateChannelResponse{ChannelID: ch.ID})
}

// @Summary      Get channel status
// @Tags         channels
// @Produce      json
// @Param        id   path      string  true  "Channel ID"
// @Success      200  {object}  ChannelStatusResponse
// @Failure      404  {object}  CallError
// @Router       /v1/channels/{id} [get]
func (h *Handler) HandleChannelStatus(c echo.Context) error {
	ch, err := h.channel(c)
	if err != nil {
		return err
	}

	stats := ch.Stats()
	return c.JSON(http.StatusOK, ChannelStatusResponse{
		ChannelID: ch.ID,
		State:     ch.State().String(),
		CreatedAt: ch.CreatedAt,
		Delivered: stats.Delivered,
		Dropped:   stats.Dropped,
	})
}

// @Summary      Delete a channel
// @Description  Disposes the channel's session and deletes its recorded frames
// @Tags         channels
// @Param        id   path      string  true  "Channel ID"
// @Success      204
// @Failure      404  {object}  CallError
// @Router       /v1/channels/{id} [delete]
func (h *Handler) HandleDeleteChannel(c echo.Context) error {
	if err := h.manager.RemoveChannel(c.Request().Context(), c.Param("id")); err != nil {
		return notFound("channel_not_found", err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// @Summary      Call a channel method
// @Description  Runs initialize, processFrame, startLiveStream, stopLiveStream or dispose
// @Tags         channels
// @Accept       json
// @Produce      json
// @Param        id       path      string   true  "Channel ID"
// @Param        request  body      Request  true  "Method call"
// @Success      200  {object}  Response
// @Failure      400  {object}  CallError
// @Failure      404  {object}  CallError
// @Failure      429  {object}  CallError
// @Router       /v1/channels/{id}/call [post]
func (h *Handler) HandleCall(c echo.Context) error {
	ch, err := h.channel(c)
	if err != nil {
		return err
	}

	var req Request
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid_request", "invalid request body")
	}
	if req.Method == "" {
		return badRequest("invalid_request", "missing method")
	}

	return c.JSON(http.StatusOK, ch.Call(c.Request().Context(), req))
}

// HandleEvents upgrades to a websocket and makes it the channel's only
// subscriber. A previous subscriber is disconnected.
//
// @Summary      Stream channel events
// @Description  WebSocket stream of landmark frames and pipeline errors
// @Tags         channels
// @Param        id   path      string  true  "Channel ID"
// @Success      101
// @Failure      404  {object}  CallError
// @Router       /v1/channels/{id}/events [get]
func (h *Handler) HandleEvents(c echo.Context) error {
	ch, err := h.channel(c)
	if err != nil {
		return err
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return nil
	}

	listener := newEventListener(ws, h.log.With("channel_id", ch.ID))
	if prev := ch.Subscribe(listener); prev != nil {
		if closer, ok := prev.(io.Closer); ok {
			closer.Close()
		}
		h.log.Debug("replaced event subscriber", "channel_id", ch.ID)
	}

	go listener.writePump()
	listener.readPump()

	ch.Unsubscribe(listener)
	return nil
}

// @Summary      List recorded frames
// @Tags         channels
// @Produce      json
// @Param        id     path      string  true   "Channel ID"
// @Param        start  query     int     false  "Earliest timestamp (ms)"
// @Param        end    query     int     false  "Latest timestamp (ms)"
// @Param        limit  query     int     false  "Maximum frames, 0 for all"  default(100)
// @Success      200  {object}  FramesResponse
// @Failure      400  {object}  CallError
// @Failure      404  {object}  CallError
// @Failure      500  {object}  CallError
// @Router       /v1/channels/{id}/frames [get]
func (h *Handler) HandleFrames(c echo.Context) error {
	ch, err := h.channel(c)
	if err != nil {
		return err
	}

	start, err := queryInt64(c, "start", 0)
	if err != nil {
		return badRequest("invalid_query", "start must be an integer")
	}
	end, err := queryInt64(c, "end", math.MaxInt64)
	if err != nil {
		return badRequest("invalid_query", "end must be an integer")
	}
	limit, err := queryInt64(c, "limit", defaultFrameLimit)
	if err != nil || limit < 0 {
		return badRequest("invalid_query", "limit must be a non-negative integer")
	}

	if h.store == nil {
		return c.JSON(http.StatusOK, FramesResponse{ChannelID: ch.ID, Frames: []pose.LandmarkFrame{}})
	}

	frames, err := h.store.GetFrames(c.Request().Context(), ch.ID, start, end, int(limit))
	if err != nil {
		h.log.Error("failed to read frames", "channel_id", ch.ID, "error", err)
		return internalError("history_unavailable", "failed to read frame history")
	}

	return c.JSON(http.StatusOK, FramesResponse{ChannelID: ch.ID, Frames: frames})
}

func (h *Handler) channel(c echo.Context) (*Channel, error) {
	ch, ok := h.manager.GetChannel(c.Param("id"))
	if !ok {
		return nil, notFound("channel_not_found", ErrChannelNotFound.Error())
	}
	return ch, nil
}

func queryInt64(c echo.Context, name string, fallback int64) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseInt(raw, 10, 64)
}
