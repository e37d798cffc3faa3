package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ifrs2tools/equityval/internal/valuation/application"
	"github.com/ifrs2tools/equityval/internal/valuation/domain"
	"github.com/ifrs2tools/equityval/pkg/response"
)

// ValuationHandler 负责处理股权激励估值相关的 HTTP 请求
type ValuationHandler struct {
	service *application.ValuationService
}

// NewValuationHandler 创建 HTTP 处理器
func NewValuationHandler(service *application.ValuationService) *ValuationHandler {
	return &ValuationHandler{service: service}
}

// RegisterRoutes 注册路由
func (h *ValuationHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/valuations")
	{
		api.POST("", h.ValuePlan)
		api.GET("/:id", h.GetValuation)
		api.GET("", h.ListValuations)
		api.POST("/recommend-model", h.RecommendModel)
	}
}

// ValuePlan 对激励计划估值
func (h *ValuationHandler) ValuePlan(c *gin.Context) {
	var req application.ValuationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.service.ValuePlan(c.Request.Context(), &req)
	if err != nil {
		status, code := classifyError(err)
		response.ErrorWithStatus(c, status, err.Error(), code)
		return
	}

	response.Created(c, dto)
}

// GetValuation 按估值 ID 查询
func (h *ValuationHandler) GetValuation(c *gin.Context) {
	valuationID := c.Param("id")
	if valuationID == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "valuation id is required", "")
		return
	}

	dto, err := h.service.GetValuation(c.Request.Context(), valuationID)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "valuation not found", "")
		return
	}

	response.Success(c, dto)
}

// ListValuations 按计划名查询历史估值
func (h *ValuationHandler) ListValuations(c *gin.Context) {
	planName := c.Query("plan_name")
	if planName == "" {
		response.ErrorWithStatus(c, http.StatusBadRequest, "plan_name is required", "")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.ErrorWithStatus(c, http.StatusBadRequest, "invalid limit", "")
			return
		}
		limit = parsed
	}

	dtos, err := h.service.ListValuations(c.Request.Context(), planName, limit)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusInternalServerError, err.Error(), "")
		return
	}

	response.Success(c, dtos)
}

// RecommendModel 返回模型推荐，不触发定价
func (h *ValuationHandler) RecommendModel(c *gin.Context) {
	var req application.RecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	dto, err := h.service.RecommendModel(c.Request.Context(), &req)
	if err != nil {
		status, code := classifyError(err)
		response.ErrorWithStatus(c, status, err.Error(), code)
		return
	}

	response.Success(c, dto)
}

// classifyError 将领域错误映射为 HTTP 状态码与业务错误码
func classifyError(err error) (int, string) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, domain.ErrStochasticEngineRequired):
		// 市场条件计划需要外部模拟引擎，本服务未接入时明确拒绝
		return http.StatusUnprocessableEntity, "STOCHASTIC_ENGINE_REQUIRED"
	case errors.Is(err, domain.ErrUnknownPricingModel):
		return http.StatusBadRequest, "UNKNOWN_PRICING_MODEL"
	default:
		return http.StatusInternalServerError, ""
	}
}
