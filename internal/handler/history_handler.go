package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hpn/preaid-gateway/internal/history"
)

// HistoryHandler serves the consultation history of the authenticated user.
// Routes must be wrapped by AuthMiddleware.
type HistoryHandler struct {
	store     history.Store
	listLimit int
	logger    *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler. A non-positive listLimit uses
// history.DefaultListLimit.
func NewHistoryHandler(store history.Store, listLimit int, logger *slog.Logger) *HistoryHandler {
	if listLimit <= 0 {
		listLimit = history.DefaultListLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryHandler{store: store, listLimit: listLimit, logger: logger}
}

type saveConsultationRequest struct {
	Issue  string `json:"issue"`
	Advice string `json:"advice"`
}

// HandleList handles GET /api/history.
func (h *HistoryHandler) HandleList(c *gin.Context) {
	userID, _ := UserID(c)

	items, err := h.store.List(c.Request.Context(), userID, h.listLimit)
	if err != nil {
		h.logger.Error("failed to load history",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load history"})
		return
	}

	c.JSON(http.StatusOK, items)
}

// HandleSave handles POST /api/history.
func (h *HistoryHandler) HandleSave(c *gin.Context) {
	userID, _ := UserID(c)

	var req saveConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Issue and advice are required"})
		return
	}

	saved, err := h.store.Save(c.Request.Context(), history.Consultation{
		UserID: userID,
		Issue:  req.Issue,
		Advice: req.Advice,
	})
	if errors.Is(err, history.ErrInvalidConsultation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Issue and advice are required"})
		return
	}
	if err != nil {
		h.logger.Error("failed to save consultation",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save consultation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "id": saved.ID})
}

// HandleDelete handles DELETE /api/history/:id.
func (h *HistoryHandler) HandleDelete(c *gin.Context) {
	userID, _ := UserID(c)

	err := h.store.Delete(c.Request.Context(), userID, c.Param("id"))
	switch {
	case errors.Is(err, history.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "History item not found"})
	case err != nil:
		h.logger.Error("failed to delete history item",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete history item"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
