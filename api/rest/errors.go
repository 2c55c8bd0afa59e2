package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/mvabs/game/battle"
	"github.com/kasuganosora/mvabs/game/world"
)

// ErrUnknownMap is returned for a map without an active room.
var ErrUnknownMap = errors.New("rest: unknown map")

// statusOf maps command errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, ErrUnknownMap),
		errors.Is(err, world.ErrUnknownUnit),
		errors.Is(err, world.ErrUnknownTemplate):
		return http.StatusNotFound
	case errors.Is(err, battle.ErrSlotLocked):
		return http.StatusConflict
	case errors.Is(err, battle.ErrInvalidMode),
		errors.Is(err, battle.ErrInvalidPosture),
		errors.Is(err, battle.ErrUnknownSlot),
		errors.Is(err, world.ErrUnknownSkill),
		errors.Is(err, world.ErrNoController),
		errors.Is(err, world.ErrInvalidPrimary):
		return http.StatusUnprocessableEntity
	case errors.Is(err, world.ErrEventQueueFull),
		errors.Is(err, world.ErrRoomStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	status := statusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}
