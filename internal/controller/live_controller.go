package controller

import (
	"io"

	"github.com/IsaacPaez/drivingschool-sub001/internal/realtime"

	"github.com/gin-gonic/gin"
)

type LiveController struct {
	Hub *realtime.Hub
}

func NewLiveController(hub *realtime.Hub) *LiveController {
	return &LiveController{Hub: hub}
}

// GET /instructors/:instructorId/live — stream SSE persistente. El primer
// evento siempre es la instantánea completa; después llegan updates
// coalescidos por el hub.
func (ctl *LiveController) Stream(c *gin.Context) {
	instructorID := c.Param("instructorId")

	sub, err := ctl.Hub.Subscribe(c.Request.Context(), instructorID)
	if err != nil {
		respondError(c, err)
		return
	}
	defer ctl.Hub.Unsubscribe(sub)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.SSEvent("message", ev)
			return true
		case <-c.Request.Context().Done():
			// El cliente se desconectó: el defer da de baja la conexión.
			return false
		}
	})
}
