package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/quarry"
	"github.com/kode4food/quarry/pkg/api"
)

const statusHealthy = "healthy"

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, api.HealthResponse{
		Service: quarry.Name,
		Version: quarry.Version,
		Status:  statusHealthy,
	})
}
