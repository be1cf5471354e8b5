package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-demand/internal/model/entity"
	"github.com/bitfantasy/nimo-demand/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// DemandStore 需求存储契约，由gorm仓库和内存实现提供
type DemandStore interface {
	List(ctx context.Context) ([]entity.Demand, error)
	FindByID(ctx context.Context, id uint) (*entity.Demand, error)
	FindBySKU(ctx context.Context, sku string) (*entity.Demand, error)
	Create(ctx context.Context, demand *entity.Demand) error
	Update(ctx context.Context, demand *entity.Demand) error
	Delete(ctx context.Context, id uint) error
}

// DemandService 需求服务
type DemandService struct {
	store DemandStore

	// 过期日期检查依赖调用时刻的当天，测试中覆盖
	now func() time.Time
}

// NewDemandService 创建需求服务
func NewDemandService(store DemandStore) *DemandService {
	return &DemandService{store: store, now: time.Now}
}

// CreateDemandRequest 创建需求请求，日期为 YYYY-MM-DD
type CreateDemandRequest struct {
	SKU             string               `json:"sku" binding:"required"`
	Description     string               `json:"description"`
	StartDate       string               `json:"startDate" binding:"required"`
	EndDate         string               `json:"endDate" binding:"required"`
	TotalPlanned    decimal.Decimal      `json:"totalPlanned"`
	TotalProduction *decimal.Decimal     `json:"totalProduction"`
	Status          *entity.DemandStatus `json:"status"`
}

// UpdateDemandRequest 更新需求请求，未提交的字段保留原值
type UpdateDemandRequest struct {
	SKU             *string              `json:"sku"`
	Description     *string              `json:"description"`
	StartDate       *string              `json:"startDate"`
	EndDate         *string              `json:"endDate"`
	TotalPlanned    *decimal.Decimal     `json:"totalPlanned"`
	TotalProduction *decimal.Decimal     `json:"totalProduction"`
	Status          *entity.DemandStatus `json:"status"`
}

// List 获取需求列表，按创建时间倒序
func (s *DemandService) List(ctx context.Context) ([]entity.Demand, error) {
	demands, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list demands: %w", err)
	}
	return demands, nil
}

// Get 获取需求详情
func (s *DemandService) Get(ctx context.Context, id uint) (*entity.Demand, error) {
	demand, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDemandNotFound
		}
		return nil, fmt.Errorf("find demand: %w", err)
	}
	return demand, nil
}

// Create 创建需求
func (s *DemandService) Create(ctx context.Context, req *CreateDemandRequest) (*entity.Demand, error) {
	// 不依赖传输层校验，引擎自行兜底
	if req.SKU == "" {
		return nil, &ValidationError{Field: "sku", Reason: "cannot be empty"}
	}
	start, err := parseDate("startDate", req.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("endDate", req.EndDate)
	if err != nil {
		return nil, err
	}
	if err := validatePlanned(req.TotalPlanned); err != nil {
		return nil, err
	}

	totalProduction := decimal.Zero
	if req.TotalProduction != nil {
		if err := validateProduction(*req.TotalProduction); err != nil {
			return nil, err
		}
		totalProduction = *req.TotalProduction
	}

	status := entity.DemandStatusPlanning
	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", string(*req.Status))}
		}
		status = *req.Status
	}

	// SKU唯一性预检，数据库唯一索引兜底
	if _, err := s.store.FindBySKU(ctx, req.SKU); err == nil {
		return nil, &ConflictError{SKU: req.SKU}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check sku: %w", err)
	}

	if err := s.validateDates(start, end); err != nil {
		return nil, err
	}

	demand := &entity.Demand{
		SKU:             req.SKU,
		Description:     req.Description,
		StartDate:       start,
		EndDate:         end,
		TotalPlanned:    req.TotalPlanned,
		TotalProduction: totalProduction,
		Status:          status,
	}

	if err := s.store.Create(ctx, demand); err != nil {
		if errors.Is(err, repository.ErrDuplicateSKU) {
			return nil, &ConflictError{SKU: req.SKU}
		}
		return nil, fmt.Errorf("create demand: %w", err)
	}
	return demand, nil
}

// Update 更新需求
func (s *DemandService) Update(ctx context.Context, id uint, req *UpdateDemandRequest) (*entity.Demand, error) {
	demand, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.SKU != nil && *req.SKU != demand.SKU {
		if *req.SKU == "" {
			return nil, &ValidationError{Field: "sku", Reason: "cannot be empty"}
		}
		if _, err := s.store.FindBySKU(ctx, *req.SKU); err == nil {
			return nil, &ConflictError{SKU: *req.SKU}
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("check sku: %w", err)
		}
	}

	if req.Status != nil {
		if !req.Status.Valid() {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", string(*req.Status))}
		}
		if *req.Status != demand.Status && !demand.Status.CanTransitionTo(*req.Status) {
			return nil, &TransitionError{From: demand.Status, To: *req.Status}
		}
	}

	// 生效日期：优先取本次提交值，否则沿用已有记录
	start := demand.StartDate
	if req.StartDate != nil {
		if start, err = parseDate("startDate", *req.StartDate); err != nil {
			return nil, err
		}
	}
	end := demand.EndDate
	if req.EndDate != nil {
		if end, err = parseDate("endDate", *req.EndDate); err != nil {
			return nil, err
		}
	}

	// 日期检查每次更新都重跑，与本次是否改动日期字段无关
	if err := s.validateDates(start, end); err != nil {
		return nil, err
	}

	if req.TotalPlanned != nil {
		if err := validatePlanned(*req.TotalPlanned); err != nil {
			return nil, err
		}
		demand.TotalPlanned = *req.TotalPlanned
	}
	if req.TotalProduction != nil {
		if err := validateProduction(*req.TotalProduction); err != nil {
			return nil, err
		}
		demand.TotalProduction = *req.TotalProduction
	}
	if req.SKU != nil {
		demand.SKU = *req.SKU
	}
	if req.Description != nil {
		demand.Description = *req.Description
	}
	if req.Status != nil {
		demand.Status = *req.Status
	}
	demand.StartDate = start
	demand.EndDate = end

	if err := s.store.Update(ctx, demand); err != nil {
		if errors.Is(err, repository.ErrDuplicateSKU) {
			return nil, &ConflictError{SKU: demand.SKU}
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrDemandNotFound
		}
		return nil, fmt.Errorf("update demand: %w", err)
	}
	return demand, nil
}

// Remove 删除需求
func (s *DemandService) Remove(ctx context.Context, id uint) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrDemandNotFound
		}
		return fmt.Errorf("delete demand: %w", err)
	}
	return nil
}

// DemandStatistics 需求统计
type DemandStatistics struct {
	Total         int             `json:"total"`
	Planning      int             `json:"planning"`
	InProgress    int             `json:"inProgress"`
	Completed     int             `json:"completed"`
	TotalPlanned  decimal.Decimal `json:"totalPlanned"`
	TotalProduced decimal.Decimal `json:"totalProduced"`
}

// GetStatistics 全量扫描统计各状态数量与计划/实产总量
func (s *DemandService) GetStatistics(ctx context.Context) (*DemandStatistics, error) {
	demands, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list demands: %w", err)
	}

	stats := &DemandStatistics{
		Total:         len(demands),
		TotalPlanned:  decimal.Zero,
		TotalProduced: decimal.Zero,
	}
	for _, d := range demands {
		switch d.Status {
		case entity.DemandStatusPlanning:
			stats.Planning++
		case entity.DemandStatusInProgress:
			stats.InProgress++
		case entity.DemandStatusCompleted:
			stats.Completed++
		}
		stats.TotalPlanned = stats.TotalPlanned.Add(d.TotalPlanned)
		stats.TotalProduced = stats.TotalProduced.Add(d.TotalProduction)
	}
	return stats, nil
}

var demandExportHeaders = []string{
	"ID", "SKU", "Description", "Start Date", "End Date",
	"Total Planned", "Total Production", "Status", "Created At",
}

// Export 导出需求列表为xlsx
func (s *DemandService) Export(ctx context.Context) (*excelize.File, string, error) {
	demands, err := s.store.List(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("list demands: %w", err)
	}

	f := excelize.NewFile()
	sheet := "Demands"
	f.SetSheetName("Sheet1", sheet)

	// 表头样式: 加粗
	boldStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})

	// 写入表头
	for i, h := range demandExportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	// 写入数据行
	for rowIdx, d := range demands {
		row := rowIdx + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), d.ID)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), d.SKU)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), d.Description)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), d.StartDate.Format("2006-01-02"))
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), d.EndDate.Format("2006-01-02"))
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), d.TotalPlanned.StringFixed(2))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), d.TotalProduction.StringFixed(2))
		f.SetCellValue(sheet, fmt.Sprintf("H%d", row), string(d.Status))
		f.SetCellValue(sheet, fmt.Sprintf("I%d", row), d.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	filename := fmt.Sprintf("demands-%s.xlsx", s.now().Format("20060102"))
	return f, filename, nil
}

// validateDates 对生效日期对执行顺序检查与过期检查
func (s *DemandService) validateDates(start, end time.Time) error {
	if err := validateDateOrder(start, end); err != nil {
		return err
	}
	return validateNotPast(start, dateOnly(s.now()))
}

// validatePlanned 计划数量必须为正，且最多两位小数
func validatePlanned(d decimal.Decimal) error {
	if !d.IsPositive() {
		return &ValidationError{Field: "totalPlanned", Reason: "must be greater than 0"}
	}
	if !d.Equal(d.Round(2)) {
		return &ValidationError{Field: "totalPlanned", Reason: "must have at most 2 decimal places"}
	}
	return nil
}

// validateProduction 实产数量不得为负，且最多两位小数
func validateProduction(d decimal.Decimal) error {
	if d.IsNegative() {
		return &ValidationError{Field: "totalProduction", Reason: "cannot be negative"}
	}
	if !d.Equal(d.Round(2)) {
		return &ValidationError{Field: "totalProduction", Reason: "must have at most 2 decimal places"}
	}
	return nil
}

// parseDate 解析 YYYY-MM-DD 日期
func parseDate(field, value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, &ValidationError{Field: field, Reason: "must be a date in YYYY-MM-DD format"}
	}
	return t, nil
}

// validateDateOrder 开始日期必须严格早于结束日期
func validateDateOrder(start, end time.Time) error {
	if !dateOnly(start).Before(dateOnly(end)) {
		return &ValidationError{Field: "startDate", Reason: "start date must be before end date"}
	}
	return nil
}

// validateNotPast 开始日期不得早于当天
func validateNotPast(start, today time.Time) error {
	if dateOnly(start).Before(today) {
		return &ValidationError{Field: "startDate", Reason: "start date cannot be in the past"}
	}
	return nil
}

// dateOnly 截断到日精度，忽略时区与时刻
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
