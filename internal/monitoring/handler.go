package monitoring

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rivalwatch/internal/constants"
	"rivalwatch/internal/logger"
	"rivalwatch/pkg/errors"
)

const ProvenanceHeader = "X-Snapshot-Provenance"

type Handler struct {
	Service Service
	Logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{
		Service: service,
		Logger:  log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.Logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	} else {
		h.Logger.WarnwCtx(c.Request.Context(), "Request rejected", "error", err, "path", c.Request.URL.Path)
	}

	c.JSON(status, errors.ToErrorResponse(err))
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group(constants.APIPrefix)
	{
		api.POST("/setup", h.Setup)
		api.GET("/check/:keyword", h.Check)
		api.POST("/check-all", h.CheckAll)
		api.GET("/results/:keyword/latest", h.LatestResult)
		api.GET("/products/:keyword/:competitor", h.Products)
		api.GET("/summary", h.Summary)

		configs := api.Group("/configs")
		{
			configs.GET("", h.ListConfigs)
			configs.GET("/:keyword", h.GetConfig)
			configs.DELETE("/:keyword", h.RemoveConfig)
		}
	}
}

// Setup godoc
// @Summary      Create or replace a monitoring config
// @Description  Saves the competitor list, frequency and alert thresholds for a keyword. Re-running setup replaces the config.
// @Tags         monitoring
// @Accept       json
// @Produce      json
// @Param        config  body      SetupRequest  true  "Monitoring setup"
// @Success      200     {object}  MonitoringConfig
// @Failure      400     {object}  errors.ErrorResponse
// @Failure      503     {object}  errors.ErrorResponse
// @Router       /setup [post]
func (h *Handler) Setup(c *gin.Context) {
	var req SetupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.HandleError(c, errors.ErrInvalidConfig.WithCause(err).WithDetail("message", err.Error()))
		return
	}

	cfg, err := h.Service.Setup(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// Check godoc
// @Summary      Run one monitoring cycle
// @Description  Fetches every competitor, diffs against the previous snapshot and stores the result
// @Tags         monitoring
// @Produce      json
// @Param        keyword  path      string  true  "Tracked keyword"
// @Success      200      {object}  MonitoringResult
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      409      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /check/{keyword} [get]
func (h *Handler) Check(c *gin.Context) {
	result, err := h.Service.Check(c.Request.Context(), c.Param("keyword"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// CheckAll godoc
// @Summary      Run a cycle for every configured keyword
// @Description  Checks keywords one at a time in name order. A failing keyword is listed under failed and the rest still run.
// @Tags         monitoring
// @Produce      json
// @Param        due  query     bool  false  "Skip keywords whose latest result is still fresh"
// @Success      200  {object}  CheckAllReport
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      408  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /check-all [post]
func (h *Handler) CheckAll(c *gin.Context) {
	dueOnly := false
	if raw := c.Query("due"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.HandleError(c, errors.ErrValidation.WithCause(err).WithDetail("message", "due must be a boolean"))
			return
		}
		dueOnly = v
	}

	report, err := h.Service.CheckAll(c.Request.Context(), dueOnly)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// LatestResult godoc
// @Summary      Latest monitoring result
// @Description  Returns the last stored result re-evaluated against the current thresholds
// @Tags         monitoring
// @Produce      json
// @Param        keyword           path      string  true   "Tracked keyword"
// @Param        check_if_missing  query     bool    false  "Run a check when no result exists"
// @Param        top               query     int     false  "Keep only products ranked within the top N"
// @Param        filter            query     string  false  "CEL expression over change events"
// @Success      200               {object}  MonitoringResult
// @Failure      400               {object}  errors.ErrorResponse
// @Failure      404               {object}  errors.ErrorResponse
// @Failure      503               {object}  errors.ErrorResponse
// @Router       /results/{keyword}/latest [get]
func (h *Handler) LatestResult(c *gin.Context) {
	view := ResultView{Filter: c.Query("filter")}

	if raw := c.Query("top"); raw != "" {
		top, err := strconv.Atoi(raw)
		if err != nil || top < 1 {
			h.HandleError(c, errors.ErrValidation.WithDetail("message", "top must be a positive integer"))
			return
		}
		view.Top = min(top, constants.MaxTopN)
	}

	checkIfMissing, _ := strconv.ParseBool(c.DefaultQuery("check_if_missing", "false"))

	result, err := h.Service.LatestResult(c.Request.Context(), c.Param("keyword"), view, checkIfMissing)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Products godoc
// @Summary      Current products of a competitor
// @Description  Returns the products of the current snapshot. The X-Snapshot-Provenance header tells upstream data from fallback data.
// @Tags         monitoring
// @Produce      json
// @Param        keyword     path      string  true  "Tracked keyword"
// @Param        competitor  path      string  true  "Competitor name"
// @Success      200         {array}   CompetitorProduct
// @Failure      404         {object}  errors.ErrorResponse
// @Failure      503         {object}  errors.ErrorResponse
// @Router       /products/{keyword}/{competitor} [get]
func (h *Handler) Products(c *gin.Context) {
	snap, err := h.Service.Products(c.Request.Context(), c.Param("keyword"), c.Param("competitor"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header(ProvenanceHeader, string(snap.Provenance))
	c.JSON(http.StatusOK, snap.Products)
}

// ListConfigs godoc
// @Summary      List monitoring configs
// @Tags         configs
// @Produce      json
// @Success      200  {object}  map[string]MonitoringConfig
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /configs [get]
func (h *Handler) ListConfigs(c *gin.Context) {
	configs, err := h.Service.ListConfigs(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, configs)
}

// GetConfig godoc
// @Summary      Get one monitoring config
// @Tags         configs
// @Produce      json
// @Param        keyword  path      string  true  "Tracked keyword"
// @Success      200      {object}  MonitoringConfig
// @Failure      404      {object}  errors.ErrorResponse
// @Failure      503      {object}  errors.ErrorResponse
// @Router       /configs/{keyword} [get]
func (h *Handler) GetConfig(c *gin.Context) {
	cfg, err := h.Service.GetConfig(c.Request.Context(), c.Param("keyword"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

// RemoveConfig godoc
// @Summary      Remove a monitoring config
// @Description  Idempotent: removing an unknown keyword also succeeds
// @Tags         configs
// @Param        keyword  path  string  true  "Tracked keyword"
// @Success      204
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /configs/{keyword} [delete]
func (h *Handler) RemoveConfig(c *gin.Context) {
	if err := h.Service.RemoveConfig(c.Request.Context(), c.Param("keyword")); err != nil {
		h.HandleError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Summary godoc
// @Summary      Monitoring summary
// @Description  Counts configured keywords and how many latest results carry changes or alerts
// @Tags         monitoring
// @Produce      json
// @Success      200  {object}  Summary
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /summary [get]
func (h *Handler) Summary(c *gin.Context) {
	summary, err := h.Service.Summary(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
