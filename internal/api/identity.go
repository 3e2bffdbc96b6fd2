package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/identity"
)

type registerBody struct {
	Username          string `json:"username"`
	Email             string `json:"email"`
	Password          string `json:"password"`
	ParticipationType string `json:"participationType"`
	TeamName          string `json:"teamName"`
	TeamMembers       []struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"teamMembers"`
}

func (a *API) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	req := identity.RegisterRequest{
		Username:          body.Username,
		Email:             body.Email,
		Password:          body.Password,
		ParticipationType: domain.ParticipationType(body.ParticipationType),
		TeamName:          body.TeamName,
	}
	for _, m := range body.TeamMembers {
		req.TeamMembers = append(req.TeamMembers, identity.MemberInput{Name: m.Name, Email: m.Email})
	}

	u, err := a.identity.Register(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := a.auth.IssueToken(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "registration successful",
		"token":   token,
		"user": gin.H{
			"id":                u.ID,
			"username":          u.Username,
			"email":             u.Email,
			"participationType": u.ParticipationType,
			"teamId":            u.TeamID,
		},
	})
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	u, err := a.identity.Login(c.Request.Context(), identity.LoginRequest{
		Email:    body.Email,
		Password: body.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := a.auth.IssueToken(c.Request.Context(), u.ID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":        u.ID,
			"username":  u.Username,
			"role":      u.Role,
			"teamId":    u.TeamID,
			"isCaptain": u.IsCaptain,
		},
	})
}

func (a *API) GetProfile(c *gin.Context) {
	u := currentUser(c)

	c.JSON(http.StatusOK, gin.H{
		"id":                         u.ID,
		"username":                   u.Username,
		"email":                      u.Email,
		"role":                       u.Role,
		"formattedRole":              u.FormattedRole(),
		"participationType":          u.ParticipationType,
		"formattedParticipationType": u.FormattedParticipationType(),
		"formattedPosition":          u.FormattedPosition(),
		"teamId":                     u.TeamID,
		"isCaptain":                  u.IsCaptain,
	})
}

func (a *API) GetUserLeaderboard(c *gin.Context) {
	entries, err := a.standings.GetUserLeaderboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (a *API) GetTeamLeaderboard(c *gin.Context) {
	entries, err := a.standings.GetTeamLeaderboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

type createTeamBody struct {
	Name string `json:"name"`
}

func (a *API) CreateTeam(c *gin.Context) {
	var body createTeamBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	t, err := a.identity.CreateTeam(c.Request.Context(), identity.CreateTeamRequest{
		Name:      body.Name,
		CaptainID: currentUser(c).ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, t)
}

func (a *API) GetTeam(c *gin.Context) {
	t, err := a.identity.GetTeam(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

type addMemberBody struct {
	MemberID string `json:"memberId"`
}

func (a *API) AddMember(c *gin.Context) {
	var body addMemberBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	t, err := a.identity.AddMember(c.Request.Context(), identity.AddMemberRequest{
		TeamID:      c.Param("teamId"),
		RequesterID: currentUser(c).ID,
		MemberID:    body.MemberID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, t)
}

func (a *API) GetTeamStats(c *gin.Context) {
	stats, err := a.identity.GetTeamStats(c.Request.Context(), c.Param("teamId"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
