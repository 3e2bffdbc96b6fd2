package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/FaresAhmed23/tournament/internal/domain"
	"github.com/FaresAhmed23/tournament/internal/event"
	"github.com/FaresAhmed23/tournament/internal/registration"
	"github.com/FaresAhmed23/tournament/internal/scoring"
	"github.com/FaresAhmed23/tournament/internal/standings"
)

type questionBody struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type createEventBody struct {
	Name            string         `json:"name"`
	Type            string         `json:"type"`
	Description     string         `json:"description"`
	Location        string         `json:"location"`
	StartDate       time.Time      `json:"startDate"`
	EndDate         time.Time      `json:"endDate"`
	Questions       []questionBody `json:"questions"`
	MaxParticipants int            `json:"maxParticipants"`
	TeamSize        int            `json:"teamSize"`
}

func (a *API) CreateEvent(c *gin.Context) {
	var body createEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	req := event.CreateEventRequest{
		Name:            body.Name,
		Type:            domain.EventType(body.Type),
		Description:     body.Description,
		Location:        body.Location,
		StartDate:       body.StartDate,
		EndDate:         body.EndDate,
		MaxParticipants: body.MaxParticipants,
		TeamSize:        body.TeamSize,
	}
	for _, q := range body.Questions {
		req.Questions = append(req.Questions, event.QuestionInput{
			Text:    q.Question,
			Options: q.Options,
			Answer:  q.Answer,
		})
	}

	e, err := a.event.CreateEvent(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, e)
}

type updateEventBody struct {
	Name            *string    `json:"name"`
	Description     *string    `json:"description"`
	Location        *string    `json:"location"`
	StartDate       *time.Time `json:"startDate"`
	EndDate         *time.Time `json:"endDate"`
	MaxParticipants *int       `json:"maxParticipants"`
	TeamSize        *int       `json:"teamSize"`
}

func (a *API) UpdateEvent(c *gin.Context) {
	var body updateEventBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	e, err := a.event.UpdateEvent(c.Request.Context(), event.UpdateEventRequest{
		EventID:         c.Param("eventId"),
		Name:            body.Name,
		Description:     body.Description,
		Location:        body.Location,
		StartDate:       body.StartDate,
		EndDate:         body.EndDate,
		MaxParticipants: body.MaxParticipants,
		TeamSize:        body.TeamSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

func (a *API) DeleteEvent(c *gin.Context) {
	err := a.event.DeleteEvent(c.Request.Context(), event.DeleteEventRequest{
		EventID: c.Param("eventId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "event deleted successfully"})
}

func (a *API) ListEvents(c *gin.Context) {
	events, err := a.event.ListEvents(c.Request.Context(), event.ListEventsRequest{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Search: c.Query("search"),
		Role:   currentUser(c).Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, events)
}

func (a *API) GetEvent(c *gin.Context) {
	e, err := a.event.GetEvent(c.Request.Context(), event.GetEventRequest{
		EventID: c.Param("eventId"),
		Role:    currentUser(c).Role,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, e)
}

func (a *API) Participate(c *gin.Context) {
	resp, err := a.scoring.Participate(c.Request.Context(), scoring.ParticipateRequest{
		EventID: c.Param("eventId"),
		UserID:  currentUser(c).ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          resp.EventID,
		"name":        resp.Name,
		"type":        resp.Type,
		"description": resp.Description,
		"startDate":   resp.StartDate,
		"endDate":     resp.EndDate,
		"questions":   resp.Questions,
	})
}

type submitBody struct {
	Answers []struct {
		QuestionID string `json:"questionId"`
		Answer     string `json:"answer"`
	} `json:"answers"`
}

func (a *API) Submit(c *gin.Context) {
	var body submitBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	req := scoring.SubmitRequest{
		EventID: c.Param("eventId"),
		UserID:  currentUser(c).ID,
	}
	for _, ans := range body.Answers {
		req.Answers = append(req.Answers, scoring.Answer{
			QuestionID: ans.QuestionID,
			Answer:     ans.Answer,
		})
	}

	resp, err := a.scoring.Submit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"score":          resp.Score,
		"correctAnswers": resp.CorrectAnswers,
		"perfectRun":     resp.PerfectRun,
		"teamUpdated":    resp.TeamUpdated,
	})
}

type subscribeBody struct {
	Type   string `json:"type"`
	TeamID string `json:"teamId"`
}

func (a *API) Subscribe(c *gin.Context) {
	var body subscribeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	kind := domain.RegistrationType(body.Type)
	if body.Type == "" {
		kind = domain.RegistrationIndividual
	}

	resp, err := a.registration.RegisterOffline(c.Request.Context(), registration.RegisterOfflineRequest{
		EventID: c.Param("eventId"),
		UserID:  currentUser(c).ID,
		Kind:    kind,
		TeamID:  body.TeamID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"currentParticipants": resp.CurrentParticipants,
		"maxParticipants":     resp.MaxParticipants,
	})
}

func (a *API) GetEventLeaderboard(c *gin.Context) {
	lb, err := a.standings.GetEventLeaderboard(c.Request.Context(), standings.EventLeaderboardRequest{
		EventID: c.Param("eventId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, lb)
}

func (a *API) GetTeamStandings(c *gin.Context) {
	st, err := a.standings.GetTeamStandings(c.Request.Context(), standings.TeamStandingsRequest{
		EventID: c.Param("eventId"),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, st)
}

func (a *API) GetGlobalLeaderboard(c *gin.Context) {
	entries, err := a.standings.GetGlobalLeaderboard(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (a *API) GetUserHistory(c *gin.Context) {
	history, err := a.standings.GetUserHistory(c.Request.Context(), standings.UserHistoryRequest{
		UserID: currentUser(c).ID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, history)
}
