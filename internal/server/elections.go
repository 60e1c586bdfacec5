package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type updateElectionRequest struct {
	Active *bool `json:"active"`
}

func (s *Server) ListActiveElections(c *gin.Context) {
	elections, err := s.electionSvc.ActiveElections(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(elections)})
}

func (s *Server) GetCurrentElection(c *gin.Context) {
	election, err := s.electionSvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": election})
}

func (s *Server) ListCommonElections(c *gin.Context) {
	mesaIDs, ok := parseIDList(c.Query("mesa_ids"))
	if !ok {
		AbortWithError(c, newValidationError("mesa_ids", "invalid_mesa_ids", "invalid mesa_ids"))
		return
	}
	elections, err := s.electionSvc.CommonTo(c.Request.Context(), mesaIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": elections})
}

func (s *Server) ListElectionOptions(c *gin.Context) {
	electionID, ok := pathID(c, "election_id")
	if !ok {
		return
	}
	options, err := s.electionSvc.OptionsFor(c.Request.Context(), electionID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": nonNil(options)})
}

// UpdateElection toggles whether an election counts toward mesa progress.
func (s *Server) UpdateElection(c *gin.Context) {
	electionID, ok := pathID(c, "election_id")
	if !ok {
		return
	}
	var req updateElectionRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Active == nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	election, err := s.electionSvc.SetActive(c.Request.Context(), electionID, *req.Active)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": election})
}

func (s *Server) GetVotingPlace(c *gin.Context) {
	placeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()

	place, err := s.geographySvc.GetVotingPlace(ctx, placeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	mesaRange, err := s.geographySvc.MesaRange(ctx, placeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	color, err := s.geographySvc.PlaceColor(ctx, placeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"voting_place": place,
		"mesa_range":   mesaRange,
		"color":        color,
	}})
}
