package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/quarry/internal/clientindex"
	"github.com/kode4food/quarry/internal/engine/flowopt"
	"github.com/kode4food/quarry/internal/flows/interrogate"
	"github.com/kode4food/quarry/pkg/api"
)

var (
	ErrInvalidClientID = errors.New("valid client ID is required")
	ErrListClients     = errors.New("failed to list clients")
	ErrGetClient       = errors.New("failed to get client")
)

func (s *Server) listClients(c *gin.Context) {
	ids, err := s.clients.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError,
			fmt.Sprintf("%s: %v", ErrListClients, err))
		return
	}
	c.JSON(http.StatusOK, api.ClientsListResponse{
		Clients: ids,
		Count:   len(ids),
	})
}

func (s *Server) getClient(c *gin.Context) {
	id := api.ClientID(c.Param("clientID"))

	sum, err := s.clients.Get(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, sum)
	case errors.Is(err, clientindex.ErrClientNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError,
			fmt.Sprintf("%s: %v", ErrGetClient, err))
	}
}

// enrollClient starts the interrogation of a newly enrolled client. Server
// configuration can only narrow what the enrollment asks to collect
func (s *Server) enrollClient(c *gin.Context) {
	id := api.ClientID(c.Param("clientID"))
	if id == "" || api.SanitizeID(id) != id {
		writeError(c, http.StatusBadRequest, ErrInvalidClientID.Error())
		return
	}

	var req api.EnrollRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest,
				fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
			return
		}
	}

	var args interrogate.Args
	if len(req.Args) > 0 {
		if err := json.Unmarshal(req.Args, &args); err != nil {
			writeError(c, http.StatusBadRequest,
				fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
			return
		}
	}
	args.SkipCloudMetadata = args.SkipCloudMetadata ||
		!s.config.CollectCloudMetadata
	args.Lightweight = args.Lightweight || s.config.Lightweight

	data, err := json.Marshal(args)
	if err != nil {
		writeError(c, http.StatusInternalServerError, err.Error())
		return
	}

	flowID, err := s.engine.StartNewFlow(interrogate.FlowType,
		flowopt.WithClient(id),
		flowopt.WithCreator(req.Creator),
		flowopt.WithArgs(data),
	)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, api.StartFlowResponse{
		FlowID:  flowID,
		Message: "interrogation started",
	})
}
