package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/quarry/pkg/api"
	"github.com/kode4food/quarry/pkg/log"
)

// handleMessages accepts a batch of agent responses. Responses that cannot
// be routed are dropped and counted, never rejected
func (s *Server) handleMessages(c *gin.Context) {
	var batch api.MessageBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		writeError(c, http.StatusBadRequest,
			fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
		return
	}

	resps := make([]*api.Response, 0, len(batch.Messages))
	for _, m := range batch.Messages {
		if m != nil {
			resps = append(resps, m.Response())
		}
	}

	accepted, err := s.engine.DeliverBatch(resps)
	if err != nil {
		slog.Error("Message delivery failed",
			slog.Int("accepted", accepted),
			log.Error(err))
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	c.JSON(http.StatusOK, api.MessageBatchResponse{
		Accepted: accepted,
		Dropped:  len(batch.Messages) - accepted,
	})
}
