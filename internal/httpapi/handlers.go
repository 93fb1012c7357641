package httpapi

import (
	"net/http"

	"culturecore/internal/core"
	"culturecore/pkg/domain"

	"github.com/gin-gonic/gin"
)

func (s *Server) createCulture(c *gin.Context) {
	var culture core.Culture
	if err := c.ShouldBindJSON(&culture); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid culture payload: " + err.Error()})
		return
	}
	created, _, err := s.svc.CreateCulture(c.Request.Context(), culture)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) listCultures(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Store().ListCultures())
}

func (s *Server) getCulture(c *gin.Context) {
	culture, ok := s.svc.Store().GetCulture(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "culture not found"})
		return
	}
	c.JSON(http.StatusOK, culture)
}

func (s *Server) listCultureContainers(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.svc.Store().GetCulture(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "culture not found"})
		return
	}
	var containers []core.Container
	err := s.svc.Store().View(c.Request.Context(), func(view core.TransactionView) error {
		containers = view.ListCultureContainers(id)
		return nil
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, containers)
}

func (s *Server) listCultureHistory(c *gin.Context) {
	id := c.Param("id")
	if _, ok := s.svc.Store().GetCulture(id); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "culture not found"})
		return
	}
	c.JSON(http.StatusOK, s.svc.Store().ListCultureHistory(id))
}

func (s *Server) createContainer(c *gin.Context) {
	var container core.Container
	if err := c.ShouldBindJSON(&container); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid container payload: " + err.Error()})
		return
	}
	created, _, err := s.svc.CreateContainer(c.Request.Context(), container)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) createTemplate(c *gin.Context) {
	var template core.ProcessTemplate
	if err := c.ShouldBindJSON(&template); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid template payload: " + err.Error()})
		return
	}
	created, _, err := s.svc.CreateProcessTemplate(c.Request.Context(), template)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (s *Server) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.Store().ListProcessTemplates())
}

type startProcessRequest struct {
	TemplateID string `json:"template_id" binding:"required"`
	CultureID  string `json:"culture_id" binding:"required"`
	Actor      string `json:"actor" binding:"required"`
}

func (s *Server) startProcess(c *gin.Context) {
	var req startProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	aggregate, _, err := s.svc.StartProcess(c.Request.Context(), req.TemplateID, req.CultureID, req.Actor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, aggregate)
}

func (s *Server) listProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.ListProcesses())
}

func (s *Server) getProcess(c *gin.Context) {
	aggregate, ok := s.svc.GetProcess(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "process not found"})
		return
	}
	c.JSON(http.StatusOK, aggregate)
}

func (s *Server) currentStep(c *gin.Context) {
	step, ok, err := s.svc.CurrentStep(c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"complete": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"complete": false, "step": step})
}

type actorRequest struct {
	Actor string `json:"actor" binding:"required"`
}

func (s *Server) startStep(c *gin.Context) {
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	step, _, err := s.svc.StartStep(c.Request.Context(), c.Param("id"), c.Param("stepID"), req.Actor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, step)
}

type completeStepRequest struct {
	Recording    recordingPayload `json:"recording" binding:"required"`
	EquipmentRef string           `json:"equipment_ref"`
	SOPConfirmed bool             `json:"sop_confirmed"`
	Actor        string           `json:"actor" binding:"required"`
}

func (s *Server) completeStep(c *gin.Context) {
	var req completeStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	recording, err := req.Recording.toRecording()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	aggregate, _, err := s.svc.CompleteStep(c.Request.Context(), c.Param("id"), c.Param("stepID"), core.CompleteStepInput{
		Recording:    recording,
		EquipmentRef: req.EquipmentRef,
		SOPConfirmed: req.SOPConfirmed,
		Actor:        req.Actor,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, aggregate)
}

type decisionRequest struct {
	Decision string `json:"decision" binding:"required"`
	Actor    string `json:"actor" binding:"required"`
}

func (s *Server) resolveDeviation(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	deviation, _, err := s.svc.ResolveDeviation(c.Request.Context(), c.Param("id"), domain.QPDecision(req.Decision), req.Actor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, deviation)
}

func (s *Server) listDeviations(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.ListDeviations())
}

func (s *Server) listTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.svc.ListTasks())
}

type passageRequest struct {
	SourceContainerIDs []string `json:"source_container_ids" binding:"required"`
	SplitRatio         string   `json:"split_ratio" binding:"required"`
	Actor              string   `json:"actor" binding:"required"`
}

func (s *Server) passage(c *gin.Context) {
	var req passageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	outcome, _, err := s.svc.Passage(c.Request.Context(), c.Param("id"), req.SourceContainerIDs, req.SplitRatio, req.Actor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type bankRequest struct {
	SourceContainerIDs []string `json:"source_container_ids" binding:"required"`
	VialCount          int      `json:"vial_count" binding:"required"`
	BankType           string   `json:"bank_type"`
	Actor              string   `json:"actor" binding:"required"`
}

func (s *Server) bank(c *gin.Context) {
	var req bankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	outcome, _, err := s.svc.Bank(c.Request.Context(), c.Param("id"), req.SourceContainerIDs, req.VialCount, req.BankType, req.Actor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type thawRequest struct {
	SourceContainerIDs []string `json:"source_container_ids" binding:"required"`
	Actor              string   `json:"actor" binding:"required"`
}

func (s *Server) thaw(c *gin.Context) {
	var req thawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	outcome, _, err := s.svc.Thaw(c.Request.Context(), c.Param("id"), req.SourceContainerIDs, req.Actor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) exportBundle(c *gin.Context) {
	if s.bundles == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bundle storage not configured"})
		return
	}
	var req actorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	info, err := s.svc.ExportAuditBundle(c.Request.Context(), s.bundles, c.Param("id"), req.Actor)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, info)
}
