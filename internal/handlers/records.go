package handlers

import (
	"errors"
	"net/http"

	"github.com/dimitrije/passkeep/internal/logger"
	"github.com/dimitrije/passkeep/internal/middleware"
	"github.com/dimitrije/passkeep/internal/records"
	"github.com/dimitrije/passkeep/pkg/dto"
	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"go.uber.org/zap"
)

// RecordHandler serves the JSON record API. Every call is scoped to the
// authenticated owner.
type RecordHandler struct {
	recordService RecordServiceInterface
	hub           HubInterface
}

func NewRecordHandler(recordService RecordServiceInterface, hub HubInterface) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
		hub:           hub,
	}
}

func (h *RecordHandler) List(c *drift.Context) {
	ownerID := middleware.GetUserID(c)
	if ownerID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	all, err := h.recordService.List(c.Request.Context(), ownerID)
	if err != nil {
		logger.Log.Error("failed to list records", zap.String("user_id", ownerID.String()), zap.Error(err))
		c.BadGateway("failed to load records")
		return
	}

	found := records.Search(all, c.QueryParam("q"))
	out := make([]dto.RecordSummary, 0, len(found))
	for _, r := range found {
		out = append(out, dto.NewRecordSummary(r))
	}
	_ = c.JSON(http.StatusOK, out)
}

func (h *RecordHandler) Get(c *drift.Context) {
	ownerID := middleware.GetUserID(c)
	if ownerID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid record id")
		return
	}

	rec, err := h.recordService.Get(c.Request.Context(), ownerID, id)
	if errors.Is(err, records.ErrRecordNotFound) {
		c.NotFound("record not found")
		return
	}
	if err != nil {
		logger.Log.Error("failed to get record", zap.String("record_id", id.String()), zap.Error(err))
		c.BadGateway("failed to load record")
		return
	}

	_ = c.JSON(http.StatusOK, dto.NewRecordResponse(rec))
}

func (h *RecordHandler) Create(c *drift.Context) {
	ownerID := middleware.GetUserID(c)
	if ownerID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateRecordRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	fields := records.Normalize(req.Fields())
	if err := records.Validate(fields); err != nil {
		var ve *records.ValidationError
		if errors.As(err, &ve) {
			_ = c.JSON(http.StatusUnprocessableEntity, map[string]string{
				"error": ve.Error(),
				"field": ve.Field,
			})
			return
		}
		c.BadRequest(err.Error())
		return
	}

	rec, err := h.recordService.Insert(c.Request.Context(), ownerID, fields)
	if err != nil {
		logger.Log.Error("failed to insert record", zap.String("user_id", ownerID.String()), zap.Error(err))
		c.BadGateway("failed to save record")
		return
	}

	h.hub.BroadcastRecordCreated(ownerID, rec.ID, rec.Title, rec.CreatedAt)
	_ = c.JSON(http.StatusCreated, dto.NewRecordResponse(rec))
}

func (h *RecordHandler) Delete(c *drift.Context) {
	ownerID := middleware.GetUserID(c)
	if ownerID == uuid.Nil {
		c.Unauthorized("not authenticated")
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid record id")
		return
	}

	err = h.recordService.Delete(c.Request.Context(), ownerID, id)
	if errors.Is(err, records.ErrRecordNotFound) {
		c.NotFound("record not found")
		return
	}
	if err != nil {
		logger.Log.Error("failed to delete record", zap.String("record_id", id.String()), zap.Error(err))
		c.BadGateway("failed to delete record")
		return
	}

	h.hub.BroadcastRecordDeleted(ownerID, id)
	_ = c.JSON(http.StatusOK, map[string]string{"message": "record deleted"})
}
