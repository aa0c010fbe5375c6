package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/dormitory/internal/authorization"
	fridgedomain "github.com/smallbiznis/dormitory/internal/fridge/domain"
	"github.com/smallbiznis/dormitory/internal/fridge/labelsheet"
	"go.uber.org/zap"
)

type allocationRequest struct {
	CompartmentID snowflake.ID   `json:"compartment_id"`
	RoomIDs       []snowflake.ID `json:"room_ids"`
	Force         bool           `json:"force"`
}

type applyAllocationRequest struct {
	Allocations []allocationRequest `json:"allocations"`
}

type compartmentSpecRequest struct {
	CompartmentType string `json:"compartment_type"`
	LabelRangeStart int    `json:"label_range_start"`
	LabelRangeEnd   int    `json:"label_range_end"`
	Locked          bool   `json:"locked"`
}

type createUnitRequest struct {
	Floor        int                      `json:"floor"`
	Location     string                   `json:"location"`
	DisplayName  string                   `json:"display_name"`
	Compartments []compartmentSpecRequest `json:"compartments"`
}

type updateCompartmentRequest struct {
	Locked          *bool   `json:"locked"`
	Status          *string `json:"status"`
	LabelRangeStart *int    `json:"label_range_start"`
	LabelRangeEnd   *int    `json:"label_range_end"`
}

type reorderRequest struct {
	CompartmentIDs []string `json:"compartment_ids"`
}

type createRoomRequest struct {
	Floor      int    `json:"floor"`
	RoomNumber string `json:"room_number"`
	RoomType   string `json:"room_type"`
}

func (s *Server) PreviewAllocation(c *gin.Context) {
	floor, err := parseFloor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	result, err := s.allocations.Preview(c.Request.Context(), floor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ApplyAllocation(c *gin.Context) {
	floor, err := parseFloor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req applyAllocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	forced := false
	allocations := make([]fridgedomain.Allocation, 0, len(req.Allocations))
	for _, a := range req.Allocations {
		forced = forced || a.Force
		allocations = append(allocations, fridgedomain.Allocation{
			CompartmentID: a.CompartmentID,
			RoomIDs:       a.RoomIDs,
			Force:         a.Force,
		})
	}
	if forced {
		if err := s.authorizeAction(c, authorization.ObjectFridgeAllocation, authorization.ActionAllocationForce); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	result, err := s.allocations.Apply(c.Request.Context(), fridgedomain.ApplyRequest{
		Floor:       floor,
		Allocations: allocations,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListUnits(c *gin.Context) {
	floor, err := parseFloor(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	units, err := s.topology.ListUnits(c.Request.Context(), floor)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": units})
}

func (s *Server) CreateUnit(c *gin.Context) {
	var req createUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	specs := make([]fridgedomain.CompartmentSpec, 0, len(req.Compartments))
	for _, spec := range req.Compartments {
		specs = append(specs, fridgedomain.CompartmentSpec{
			CompartmentType: fridgedomain.CompartmentType(strings.ToLower(strings.TrimSpace(spec.CompartmentType))),
			LabelRangeStart: spec.LabelRangeStart,
			LabelRangeEnd:   spec.LabelRangeEnd,
			Locked:          spec.Locked,
		})
	}

	unit, err := s.topology.CreateUnit(c.Request.Context(), fridgedomain.CreateUnitRequest{
		Floor:        req.Floor,
		Location:     req.Location,
		DisplayName:  req.DisplayName,
		Compartments: specs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": unit})
}

func (s *Server) ReorderCompartments(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	unit, err := s.topology.ReorderCompartments(c.Request.Context(), fridgedomain.ReorderRequest{
		UnitID:         c.Param("id"),
		CompartmentIDs: req.CompartmentIDs,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": unit})
}

func (s *Server) RelabelUnit(c *gin.Context) {
	result, err := s.topology.RelabelUnit(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) UpdateCompartment(c *gin.Context) {
	var req updateCompartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	update := fridgedomain.UpdateCompartmentRequest{
		ID:              c.Param("id"),
		Locked:          req.Locked,
		LabelRangeStart: req.LabelRangeStart,
		LabelRangeEnd:   req.LabelRangeEnd,
	}
	if req.Status != nil {
		status := fridgedomain.CompartmentStatus(strings.ToLower(strings.TrimSpace(*req.Status)))
		update.Status = &status
	}

	compartment, err := s.topology.UpdateCompartment(c.Request.Context(), update)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": compartment})
}

// CompartmentLabels streams the printable label sheet. ?download=true sets an
// attachment disposition.
func (s *Server) CompartmentLabels(c *gin.Context) {
	ctx := c.Request.Context()
	download, err := parseOptionalBool(c.Query("download"))
	if err != nil {
		AbortWithError(c, newValidationError("download", "invalid_download", "invalid download flag"))
		return
	}

	compartment, err := s.topology.GetCompartment(ctx, c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	unit, err := s.topology.GetUnit(ctx, compartment.UnitID.String())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	sheet := labelsheet.Sheet{Unit: unit.FridgeUnit, Compartment: compartment}
	doc, err := s.labels.Render(ctx, sheet)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	disposition := "inline"
	if download != nil && *download {
		disposition = "attachment"
	}
	c.Header("Content-Disposition", disposition+`; filename="`+labelsheet.FileName(sheet)+`"`)
	c.Status(http.StatusOK)
	c.Header("Content-Type", "application/pdf")
	if _, err := io.Copy(c.Writer, doc); err != nil {
		s.log.Warn("failed to stream label sheet", zap.String("compartment_id", compartment.ID.String()), zap.Error(err))
	}
}

func (s *Server) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	room, err := s.topology.CreateRoom(c.Request.Context(), fridgedomain.CreateRoomRequest{
		Floor:      req.Floor,
		RoomNumber: req.RoomNumber,
		RoomType:   req.RoomType,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": room})
}
