package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kode4food/quarry/internal/engine"
	"github.com/kode4food/quarry/internal/engine/flowopt"
	"github.com/kode4food/quarry/pkg/api"
)

var (
	ErrListFlows = errors.New("failed to list flows")
	ErrGetFlow   = errors.New("failed to get flow")
)

func (s *Server) listFlows(c *gin.Context) {
	flows, err := s.engine.ListActiveFlows()
	if err != nil {
		writeError(c, http.StatusInternalServerError,
			fmt.Sprintf("%s: %v", ErrListFlows, err))
		return
	}

	c.JSON(http.StatusOK, api.FlowsListResponse{
		Flows: flows,
		Count: len(flows),
	})
}

func (s *Server) startFlow(c *gin.Context) {
	var req api.StartFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest,
			fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
		return
	}

	opts := []flowopt.Applier{
		flowopt.WithArgs(req.Args),
		flowopt.WithClient(req.ClientID),
		flowopt.WithCreator(req.Creator),
	}

	flowID := req.ID
	var err error
	if flowID == "" {
		flowID, err = s.engine.StartNewFlow(req.Type, opts...)
	} else {
		flowID = api.SanitizeID(flowID)
		err = s.engine.StartFlow(flowID, req.Type, opts...)
	}

	switch {
	case err == nil:
		c.JSON(http.StatusCreated, api.StartFlowResponse{
			FlowID:  flowID,
			Message: "flow started",
		})
	case errors.Is(err, engine.ErrFlowExists):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusBadRequest, err.Error())
	}
}

func (s *Server) getFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	flow, err := s.engine.GetFlowState(flowID)
	if err == nil {
		c.JSON(http.StatusOK, flow)
		return
	}

	if errors.Is(err, engine.ErrFlowNotFound) {
		writeError(c, http.StatusNotFound,
			fmt.Sprintf("%s: %s", err.Error(), flowID))
		return
	}
	writeError(c, http.StatusInternalServerError,
		fmt.Sprintf("%s: %v", ErrGetFlow, err))
}

func (s *Server) cancelFlow(c *gin.Context) {
	flowID := api.FlowID(c.Param("flowID"))

	var req api.CancelFlowRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest,
				fmt.Sprintf("%s: %v", ErrInvalidJSON, err))
			return
		}
	}

	err := s.engine.CancelFlow(flowID, req.Reason)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, api.CancelFlowResponse{
			FlowID:  flowID,
			Message: "flow cancelled",
		})
	case errors.Is(err, engine.ErrFlowNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, engine.ErrFlowTerminal):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, err.Error())
	}
}
