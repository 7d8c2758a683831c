package http

import (
	"errors"
	"net/http"
	"strconv"

	"message-scheduler/internal/dto"
	"message-scheduler/internal/service"

	"github.com/labstack/echo/v4"
)

const defaultRunsLimit = 20

func (h *HttpAPIHandler) SetupJobs(base *echo.Group) {
	v1 := base.Group("/v1")
	{
		jobs := v1.Group("/jobs")
		jobs.GET("", h.ListJobs)
		jobs.POST("", h.CreateJob)
		jobs.GET("/:id", h.GetJob)
		jobs.PUT("/:id", h.UpdateJob)
		jobs.DELETE("/:id", h.DeleteJob)
		jobs.POST("/:id/toggle", h.ToggleJob)
		jobs.POST("/:id/run", h.RunJob)
		jobs.GET("/:id/runs", h.GetJobRuns)

		v1.GET("/runs", h.GetRecentRuns)
		v1.GET("/stats", h.GetStats)
		v1.POST("/cron/describe", h.DescribeCron)
	}
}

func (h *HttpAPIHandler) ListJobs(c echo.Context) error {
	jobs, err := h.service.SchedulerService.GetAllJobs(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Jobs retrieved", jobs))
}

func (h *HttpAPIHandler) CreateJob(c echo.Context) error {
	var req dto.CreateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	job, err := h.service.SchedulerService.CreateJob(c.Request().Context(), req.ToModel())
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusCreated, dto.NewBaseResponse(http.StatusCreated, "Job created", job))
}

func (h *HttpAPIHandler) GetJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}

	job, err := h.service.SchedulerService.GetJob(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("job not found"))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Job retrieved", job))
}

func (h *HttpAPIHandler) UpdateJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}

	var req dto.UpdateJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	job, err := h.service.SchedulerService.UpdateJob(c.Request().Context(), id, req.ToInput())
	if err != nil {
		if errors.Is(err, service.ErrValidation) {
			return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
		}
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("job not found"))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Job updated", job))
}

func (h *HttpAPIHandler) DeleteJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}

	deleted, err := h.service.SchedulerService.DeleteJob(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	if !deleted {
		return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("job not found"))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Job deleted", nil))
}

func (h *HttpAPIHandler) ToggleJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}

	var req dto.ToggleJobRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	job, err := h.service.SchedulerService.ToggleJob(c.Request().Context(), id, *req.Enabled)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	if job == nil {
		return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("job not found"))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Job toggled", job))
}

func (h *HttpAPIHandler) RunJob(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}

	result, err := h.service.SchedulerService.RunJobNow(c.Request().Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			return c.JSON(http.StatusNotFound, dto.NewNotFoundResponse("job not found"))
		case errors.Is(err, service.ErrJobAlreadyRunning):
			return c.JSON(http.StatusConflict, dto.NewBaseResponse(http.StatusConflict, err.Error(), nil))
		default:
			return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
		}
	}

	resp := dto.RunJobResponse{
		Success:     result.Success,
		MessageSent: result.MessageSent,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Job executed", resp))
}

func (h *HttpAPIHandler) GetJobRuns(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse("invalid job id"))
	}

	runs, err := h.service.SchedulerService.GetJobRuns(c.Request().Context(), id, parseLimit(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Runs retrieved", runs))
}

func (h *HttpAPIHandler) GetRecentRuns(c echo.Context) error {
	runs, err := h.service.SchedulerService.GetRecentRuns(c.Request().Context(), parseLimit(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Runs retrieved", runs))
}

func (h *HttpAPIHandler) GetStats(c echo.Context) error {
	stats, err := h.service.SchedulerService.GetStats(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, dto.NewBaseResponse(http.StatusInternalServerError, err.Error(), nil))
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Stats retrieved", stats))
}

func (h *HttpAPIHandler) DescribeCron(c echo.Context) error {
	var req dto.CronExpressionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}
	if err := h.validator.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, dto.NewBadRequestResponse(err.Error()))
	}

	resp := dto.CronExpressionResponse{
		Expression:  req.Expression,
		Valid:       service.ValidateCronExpression(req.Expression),
		Description: service.DescribeCronExpression(req.Expression),
	}
	return c.JSON(http.StatusOK, dto.NewSuccessResponse("Expression inspected", resp))
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}

func parseLimit(c echo.Context) int {
	limit := defaultRunsLimit
	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}
