package handler

import (
	"errors"
	"strconv"

	"github.com/bitfantasy/nimo-demand/internal/service"
	"github.com/gin-gonic/gin"
)

// DemandHandler 需求处理器
type DemandHandler struct {
	svc *service.DemandService
}

// NewDemandHandler 创建需求处理器
func NewDemandHandler(svc *service.DemandService) *DemandHandler {
	return &DemandHandler{svc: svc}
}

// List 获取需求列表
// GET /api/demands
func (h *DemandHandler) List(c *gin.Context) {
	demands, err := h.svc.List(c.Request.Context())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, demands)
}

// Get 获取需求详情
// GET /api/demands/:id
func (h *DemandHandler) Get(c *gin.Context) {
	id, ok := demandID(c)
	if !ok {
		return
	}

	demand, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, demand)
}

// Create 创建需求
// POST /api/demands
func (h *DemandHandler) Create(c *gin.Context) {
	var req service.CreateDemandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	demand, err := h.svc.Create(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	Created(c, demand)
}

// Update 更新需求
// PUT /api/demands/:id
func (h *DemandHandler) Update(c *gin.Context) {
	id, ok := demandID(c)
	if !ok {
		return
	}

	var req service.UpdateDemandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	demand, err := h.svc.Update(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, err)
		return
	}
	Success(c, demand)
}

// Delete 删除需求
// DELETE /api/demands/:id
func (h *DemandHandler) Delete(c *gin.Context) {
	id, ok := demandID(c)
	if !ok {
		return
	}

	if err := h.svc.Remove(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	Success(c, nil)
}

// Statistics 需求统计
// GET /api/demands/statistics
func (h *DemandHandler) Statistics(c *gin.Context) {
	stats, err := h.svc.GetStatistics(c.Request.Context())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	Success(c, stats)
}

// Export 导出需求列表为xlsx
// GET /api/demands/export
func (h *DemandHandler) Export(c *gin.Context) {
	f, filename, err := h.svc.Export(c.Request.Context())
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// demandID 解析路径中的需求ID
func demandID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		BadRequest(c, "Demand ID must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

// respondError 将服务层错误映射到响应码
func respondError(c *gin.Context, err error) {
	var (
		conflictErr   *service.ConflictError
		validationErr *service.ValidationError
		transitionErr *service.TransitionError
	)
	switch {
	case errors.Is(err, service.ErrDemandNotFound):
		NotFound(c, err.Error())
	case errors.As(err, &conflictErr):
		Conflict(c, err.Error())
	case errors.As(err, &validationErr), errors.As(err, &transitionErr):
		BadRequest(c, err.Error())
	default:
		InternalError(c, err.Error())
	}
}
