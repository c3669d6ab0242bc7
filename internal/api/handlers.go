// internal/api/handlers.go
package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yusukekikuta0509/projectKAIKA/internal/auth"
	"github.com/yusukekikuta0509/projectKAIKA/internal/machine"
	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/scene"
	"github.com/yusukekikuta0509/projectKAIKA/internal/services"
)

const defaultFrameDT = 1.0 / 60

// Handler serves the REST API.
type Handler struct {
	Sessions         *services.SessionService
	Catalog          *services.CatalogService
	ProgressService  *services.ProgressService
	ConfigService    *services.ConfigService
	Exports          *services.ExportService
	Tokens           *auth.TokenService
	Layouts          *scene.LayoutCache
	WebSocketHandler *WebSocketHandler
	WebSockets       *WebSocketManager
	Response         *ResponseHelper
}

func NewHandler(
	sessions *services.SessionService,
	catalog *services.CatalogService,
	progress *services.ProgressService,
	configService *services.ConfigService,
	tokens *auth.TokenService,
	manager *WebSocketManager,
) *Handler {
	return &Handler{
		Sessions:         sessions,
		Catalog:          catalog,
		ProgressService:  progress,
		ConfigService:    configService,
		Exports:          services.NewExportService(nil, nil),
		Tokens:           tokens,
		Layouts:          scene.NewLayoutCache(scene.DefaultLayoutCacheSize),
		WebSocketHandler: NewWebSocketHandler(sessions, manager),
		WebSockets:       manager,
		Response:         NewResponseHelper(),
	}
}

// Request bodies.

type ModalRequest struct {
	Open *bool `json:"open" binding:"required"`
}

type IntensityRequest struct {
	Intensity *int `json:"intensity" binding:"required"`
}

type TerrainRequest struct {
	Terrain string `json:"terrain" binding:"required"`
}

// CreateSessionResponse carries the credentials for the new session.
type CreateSessionResponse struct {
	Session   services.Snapshot `json:"session"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// session resolves :id, writing the error response when it cannot.
func (h *Handler) session(c *gin.Context) (*services.Session, bool) {
	id, ok := SessionIDFromContext(c)
	if !ok {
		id = c.Param("id")
	}
	session, err := h.Sessions.Get(id)
	if err != nil {
		h.Response.NotFound(c, "session")
		return nil, false
	}
	return session, true
}

// outcome reports a state change request. A rejected precondition is a normal
// response with accepted=false.
func (h *Handler) outcome(c *gin.Context, session *services.Session, out machine.Outcome, err error) {
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	data := gin.H{"outcome": out, "session": session.Snapshot()}
	if out.Accepted && out.TaskID != "" {
		h.Response.Accepted(c, data)
		return
	}
	h.Response.Success(c, data)
}

func (h *Handler) snapshot(c *gin.Context, session *services.Session, err error) {
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, session.Snapshot())
}

// Sessions

func (h *Handler) CreateSession(c *gin.Context) {
	session := h.Sessions.Create()
	token, expires, err := h.Tokens.Issue(session.ID)
	if err != nil {
		_ = h.Sessions.Close(session.ID)
		h.Response.InternalError(c, "could not issue session credentials")
		return
	}
	h.Response.Created(c, CreateSessionResponse{
		Session:   session.Snapshot(),
		Token:     token,
		ExpiresAt: expires,
	})
}

func (h *Handler) GetSession(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.Response.Success(c, session.Snapshot())
}

func (h *Handler) CloseSession(c *gin.Context) {
	if err := h.Sessions.Close(c.Param("id")); err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"closed": c.Param("id")})
}

func (h *Handler) SetWallet(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var wallet models.WalletState
	if err := c.ShouldBindJSON(&wallet); err != nil {
		h.Response.BadRequest(c, "invalid wallet state", err.Error())
		return
	}
	h.snapshot(c, session, session.SetWallet(wallet))
}

// Device

// ConnectDevice waits for the pairing attempt to resolve. When the client
// goes away first the attempt keeps running for the session.
func (h *Handler) ConnectDevice(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	result, err := session.ConnectDevice(c.Request.Context())
	if err != nil && c.Request.Context().Err() == nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"result": result, "session": session.Snapshot()})
}

func (h *Handler) DisconnectDevice(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.snapshot(c, session, session.DisconnectDevice())
}

func (h *Handler) SetModal(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req ModalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "open is required", err.Error())
		return
	}
	h.snapshot(c, session, session.SetModal(*req.Open))
}

// Feelings and purchases

// ListFeelings returns the marketplace (not owned) or the owned collection.
func (h *Handler) ListFeelings(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	category, valid := models.ParseCategory(c.Query("category"))
	if !valid {
		h.Response.Error(c, http.StatusBadRequest, ErrorCategoryInvalid, "unknown category "+c.Query("category"))
		return
	}

	switch view := c.DefaultQuery("view", "marketplace"); view {
	case "marketplace":
		h.Response.Success(c, session.Marketplace(category))
	case "owned":
		h.Response.Success(c, session.Owned(category))
	default:
		h.Response.Error(c, http.StatusBadRequest, ErrorViewInvalid, "view must be marketplace or owned")
	}
}

func (h *Handler) Purchase(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	out, err := session.Purchase(c.Param("fid"))
	h.outcome(c, session, out, err)
}

func (h *Handler) SelectFeeling(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	out, err := session.SelectFeeling(c.Param("fid"))
	h.outcome(c, session, out, err)
}

func (h *Handler) Transactions(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.Response.Success(c, gin.H{
		"balances":     session.Balances(),
		"transactions": session.Transactions(),
	})
}

// ExportLedger renders the session's balances and history; save=true also files it.
func (h *Handler) ExportLedger(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	save, err := strconv.ParseBool(c.DefaultQuery("save", "false"))
	if err != nil {
		h.Response.BadRequest(c, "save must be a boolean")
		return
	}
	result, err := h.Exports.ExportSession(session, c.DefaultQuery("format", "json"), save)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, result)
}

// Playback

func (h *Handler) TogglePlayback(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	out, err := session.TogglePlayback()
	h.outcome(c, session, out, err)
}

func (h *Handler) SetIntensity(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req IntensityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "intensity is required", err.Error())
		return
	}
	out, err := session.SetIntensity(*req.Intensity)
	h.outcome(c, session, out, err)
}

// Collection

func (h *Handler) SelectTerrain(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	var req TerrainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "terrain is required", err.Error())
		return
	}
	out, err := session.SelectTerrain(req.Terrain)
	h.outcome(c, session, out, err)
}

func (h *Handler) StartCollection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	out, err := session.StartCollection()
	h.outcome(c, session, out, err)
}

func (h *Handler) StopCollection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	out, err := session.StopCollection()
	h.outcome(c, session, out, err)
}

func (h *Handler) SubmitCollection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	out, err := session.SubmitCollection()
	h.outcome(c, session, out, err)
}

func (h *Handler) ResetCollection(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	h.snapshot(c, session, session.ResetCollection())
}

// Scene

func (h *Handler) SceneFrame(c *gin.Context) {
	session, ok := h.session(c)
	if !ok {
		return
	}
	dt := defaultFrameDT
	if raw := c.Query("dt"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			h.Response.BadRequest(c, "dt must be a number of seconds")
			return
		}
		if parsed < 0 || parsed > scene.MaxFrameDT {
			h.Response.BadRequest(c, fmt.Sprintf("dt must be between 0 and %g seconds", scene.MaxFrameDT))
			return
		}
		dt = parsed
	}
	h.Response.Success(c, session.Frame(dt))
}

func (h *Handler) SceneLayout(c *gin.Context) {
	seed := h.ConfigService.GetTuning().Scene.LayoutSeed
	if raw := c.Query("seed"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.Response.BadRequest(c, "seed must be an unsigned integer")
			return
		}
		seed = parsed
	}
	layout := h.Layouts.Get(seed)
	h.Response.Success(c, gin.H{
		"layout": layout,
		"counts": gin.H{
			"roads":     len(layout.Roads),
			"lines":     len(layout.Lines),
			"buildings": len(layout.Buildings),
			"glows":     layout.GlowCount(),
		},
	})
}

// Catalog

func (h *Handler) GetCatalog(c *gin.Context) {
	h.Response.Success(c, h.Catalog.Feelings())
}

func (h *Handler) GetTerrains(c *gin.Context) {
	h.Response.Success(c, h.Catalog.Terrains())
}

// Progress

// SubscribeProgress streams a purchase or upload tracker as server sent events.
func (h *Handler) SubscribeProgress(c *gin.Context) {
	tracker, exists := h.ProgressService.GetTracker(c.Param("taskID"))
	if !exists {
		h.Response.NotFound(c, "task")
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case update, ok := <-updates:
			if !ok {
				return false
			}
			data, _ := json.Marshal(update)
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			return update.Status == services.ProgressRunning
		case <-heartbeat.C:
			fmt.Fprintf(w, "event: heartbeat\ndata: {\"time\":%d}\n\n", time.Now().Unix())
			return true
		}
	})
}

// Tuning

func (h *Handler) GetTuning(c *gin.Context) {
	h.Response.Success(c, h.ConfigService.GetTuning())
}

// UpdateTuning merges a partial tuning document. Open sessions keep their values.
func (h *Handler) UpdateTuning(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.Response.BadRequest(c, "unreadable body")
		return
	}
	updated, err := h.ConfigService.ApplyPatch(body, c.ClientIP())
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorTuningInvalid, err.Error())
		return
	}
	h.Response.Success(c, updated, "tuning updated")
}

// ReloadTuning reads the tuning file again.
func (h *Handler) ReloadTuning(c *gin.Context) {
	if err := h.ConfigService.Reload(c.ClientIP()); err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorTuningInvalid, err.Error())
		return
	}
	h.Response.Success(c, h.ConfigService.GetTuning(), "tuning reloaded")
}

// Health

func (h *Handler) Healthz(c *gin.Context) {
	h.Response.Success(c, gin.H{
		"status":     "ok",
		"sessions":   h.Sessions.Count(),
		"websockets": h.WebSockets.GetStatus(),
	})
}
