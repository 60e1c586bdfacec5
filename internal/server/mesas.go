package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	mesadomain "github.com/smallbiznis/escrutinio/internal/mesa/domain"
	obscontext "github.com/smallbiznis/escrutinio/internal/observability/context"
	votereportdomain "github.com/smallbiznis/escrutinio/internal/votereport/domain"
)

type voteRequest struct {
	OptionID   snowflake.ID  `json:"option_id"`
	Votes      *int          `json:"votes"`
	ReporterID *snowflake.ID `json:"reporter_id"`
}

type tallySheetRequest struct {
	ReporterID *snowflake.ID `json:"reporter_id"`
	Votes      []voteRequest `json:"votes"`
}

func (s *Server) ListPendingEntry(c *gin.Context) {
	window, ok := parseOptionalDuration(c.Query("window"))
	if !ok {
		AbortWithError(c, newValidationError("window", "invalid_window", "invalid window"))
		return
	}

	mesas, err := s.progressSvc.PendingDataEntry(c.Request.Context(), window)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(mesas)})
}

func (s *Server) ListPendingConfirmation(c *gin.Context) {
	mesas, err := s.progressSvc.PendingConfirmation(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(mesas)})
}

func (s *Server) Summary(c *gin.Context) {
	summary, err := s.progressSvc.Summary(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

func (s *Server) GetMesa(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	mesa, err := s.mesaSvc.Get(c.Request.Context(), mesaID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": mesa})
}

// ClaimMesa answers 200 either way; a lost race reports claimed=false.
func (s *Server) ClaimMesa(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	window, ok := parseOptionalDuration(c.Query("window"))
	if !ok {
		AbortWithError(c, newValidationError("window", "invalid_window", "invalid window"))
		return
	}

	claimed, err := s.mesaSvc.Claim(c.Request.Context(), mesaID, window)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"mesa_id": mesaID, "claimed": claimed}})
}

func (s *Server) ReleaseMesa(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := s.mesaSvc.Release(c.Request.Context(), mesaID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) AdvanceMesa(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	mesa, err := s.mesaSvc.AdvanceState(c.Request.Context(), mesaID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": mesa})
}

func (s *Server) AssignLoadOrder(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	mesa, err := s.geographySvc.AssignLoadOrder(c.Request.Context(), mesaID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": mesa})
}

func (s *Server) GetProjectionGroup(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	group, err := s.geographySvc.ProjectionGroup(c.Request.Context(), mesaID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": group})
}

func (s *Server) NextElectionForEntry(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	election, err := s.mesaSvc.NextElectionPendingReport(c.Request.Context(), mesaID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": election})
}

func (s *Server) NextElectionForConfirmation(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	election, err := s.mesaSvc.NextElectionPendingConfirmation(c.Request.Context(), mesaID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": election})
}

func (s *Server) ListVotes(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	electionID, ok := pathID(c, "election_id")
	if !ok {
		return
	}
	reports, err := s.voteSvc.ListForMesa(c.Request.Context(), mesaID, electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(reports)})
}

func (s *Server) RecordVote(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	electionID, ok := pathID(c, "election_id")
	if !ok {
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.voteSvc.Record(c.Request.Context(), votereportdomain.RecordRequest{
		MesaID:     mesaID,
		ElectionID: electionID,
		OptionID:   req.OptionID,
		Votes:      req.Votes,
		ReporterID: s.reporterID(c, req.ReporterID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": report})
}

// RecordTallySheet stores every line of a mesa's sheet for one election at once.
func (s *Server) RecordTallySheet(c *gin.Context) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	electionID, ok := pathID(c, "election_id")
	if !ok {
		return
	}

	var req tallySheetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	reqs := make([]votereportdomain.RecordRequest, 0, len(req.Votes))
	for _, line := range req.Votes {
		reporterID := line.ReporterID
		if reporterID == nil {
			reporterID = req.ReporterID
		}
		reqs = append(reqs, votereportdomain.RecordRequest{
			MesaID:     mesaID,
			ElectionID: electionID,
			OptionID:   line.OptionID,
			Votes:      line.Votes,
			ReporterID: s.reporterID(c, reporterID),
		})
	}

	reports, err := s.voteSvc.RecordBatch(c.Request.Context(), reqs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": reports})
}

func (s *Server) ConfirmMesa(c *gin.Context) {
	s.setConfirmed(c, s.mesaSvc.Confirm)
}

func (s *Server) UnconfirmMesa(c *gin.Context) {
	s.setConfirmed(c, s.mesaSvc.Unconfirm)
}

func (s *Server) setConfirmed(c *gin.Context, apply func(ctx context.Context, mesaID, electionID snowflake.ID) (mesadomain.MesaElection, error)) {
	mesaID, ok := pathID(c, "id")
	if !ok {
		return
	}
	electionID, ok := pathID(c, "election_id")
	if !ok {
		return
	}
	association, err := apply(c.Request.Context(), mesaID, electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": association})
}

// reporterID prefers the body value and falls back to the X-Reporter-Id header.
func (s *Server) reporterID(c *gin.Context, fromBody *snowflake.ID) *snowflake.ID {
	if fromBody != nil && *fromBody > 0 {
		return fromBody
	}
	if id, ok := parseSnowflakeID(obscontext.ReporterIDFromContext(c.Request.Context())); ok {
		return &id
	}
	return nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
