package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/soham10i/stf-hw/internal/executor"
	"github.com/soham10i/stf-hw/internal/types"
)

// Operational validation happens here, before a queue row exists: a request
// that cannot succeed is a 4xx, never a FAILED command.

type commandResponse struct {
	CommandID int64 `json:"command_id"`
}

// POST /order/store {flavor, slot?}
func (s *Server) orderStore(c *gin.Context) {
	var req struct {
		Flavor string `json:"flavor"`
		Slot   string `json:"slot"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Invalid request body", err.Error()))
		return
	}

	flavor, err := types.ParseFlavor(req.Flavor)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Invalid flavor", req.Flavor))
		return
	}

	var slot types.SlotName
	if req.Slot != "" {
		slot, err = types.ParseSlot(req.Slot)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Invalid slot name", req.Slot))
			return
		}
		existing, err := s.store.GetSlot(c.Request.Context(), slot)
		if err != nil {
			s.internalError(c, err)
			return
		}
		if existing.Occupied() {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Slot is occupied", slot))
			return
		}
	} else {
		slot, err = s.store.FindEmptySlot(c.Request.Context())
		if err != nil {
			if errors.Is(err, types.ErrWarehouseFull) {
				c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "No empty slot available", nil))
				return
			}
			s.internalError(c, err)
			return
		}
	}

	params, _ := json.Marshal(types.StoreParams{Flavor: flavor})
	s.enqueue(c, &types.Command{
		Kind:       types.KindStore,
		TargetSlot: &slot,
		Params:     params,
		Devices:    executor.DeviceSet(types.KindStore, nil),
	})
}

// POST /order/retrieve {slot}
func (s *Server) orderRetrieve(c *gin.Context) {
	var req struct {
		Slot string `json:"slot" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Invalid request body", err.Error()))
		return
	}

	slot, err := types.ParseSlot(req.Slot)
	if err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Invalid slot name", req.Slot))
		return
	}

	existing, err := s.store.GetSlot(c.Request.Context(), slot)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if !existing.Occupied() {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Slot is empty", slot))
		return
	}

	s.enqueue(c, &types.Command{
		Kind:       types.KindRetrieve,
		TargetSlot: &slot,
		Devices:    executor.DeviceSet(types.KindRetrieve, nil),
	})
}

// POST /order/process {slot?}. Without a slot the lowest-named slot holding
// a RAW_DOUGH cookie is picked.
func (s *Server) orderProcess(c *gin.Context) {
	var req struct {
		Slot string `json:"slot"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Invalid request body", err.Error()))
		return
	}

	var slot types.SlotName
	var err error
	if req.Slot != "" {
		slot, err = types.ParseSlot(req.Slot)
		if err != nil {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Invalid slot name", req.Slot))
			return
		}
		cookie, err := s.store.CookieAtSlot(c.Request.Context(), slot)
		if err != nil {
			if errors.Is(err, types.ErrSlotEmpty) {
				c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400", "Slot is empty", slot))
				return
			}
			s.internalError(c, err)
			return
		}
		if cookie.Status != types.CookieRawDough {
			c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400",
				"Cookie is not RAW_DOUGH", cookie.Status))
			return
		}
	} else {
		slot, err = s.store.FindRawDoughSlot(c.Request.Context())
		if err != nil {
			if errors.Is(err, types.ErrNoRawDough) {
				c.JSON(http.StatusBadRequest, types.NewErrorResponse("ORDER_400",
					"No RAW_DOUGH cookies available for processing", nil))
				return
			}
			s.internalError(c, err)
			return
		}
	}

	s.enqueue(c, &types.Command{
		Kind:       types.KindProcess,
		TargetSlot: &slot,
		Devices:    executor.DeviceSet(types.KindProcess, nil),
	})
}

func (s *Server) enqueue(c *gin.Context, cmd *types.Command) {
	if err := s.store.CreateCommand(c.Request.Context(), cmd); err != nil {
		s.internalError(c, err)
		return
	}
	s.logger.Info("command queued",
		zap.Int64("id", cmd.ID),
		zap.String("kind", string(cmd.Kind)))
	c.JSON(http.StatusAccepted, commandResponse{CommandID: cmd.ID})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.logger.Error("request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError,
		types.NewErrorResponse("INTERNAL_500", "Internal error", err.Error()))
}
