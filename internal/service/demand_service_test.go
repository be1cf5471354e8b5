package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bitfantasy/nimo-demand/internal/model/entity"
	"github.com/bitfantasy/nimo-demand/internal/repository/memory"
	"github.com/shopspring/decimal"
)

var _ DemandStore = (*memory.DemandStore)(nil)

// testNow is the fixed "current time" for all service tests: 2026-03-10
var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*DemandService, *memory.DemandStore) {
	t.Helper()
	store := memory.NewDemandStore()
	tick := 0
	store.SetClock(func() time.Time {
		tick++
		return testNow.Add(time.Duration(tick) * time.Second)
	})
	svc := NewDemandService(store)
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func validCreateRequest(t *testing.T, sku string) *CreateDemandRequest {
	t.Helper()
	return &CreateDemandRequest{
		SKU:          sku,
		Description:  "春季铝罐生产批次",
		StartDate:    "2026-03-15",
		EndDate:      "2026-04-15",
		TotalPlanned: dec(t, "100.00"),
	}
}

func TestCreateDemandDefaults(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreateRequest(t, "SKU-001"))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if created.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if created.Status != entity.DemandStatusPlanning {
		t.Fatalf("expected default status Planning, got %q", created.Status)
	}
	if !created.TotalProduction.Equal(decimal.Zero) {
		t.Fatalf("expected default totalProduction 0, got %s", created.TotalProduction)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("expected assigned timestamps")
	}
	if !created.StartDate.Before(created.EndDate) {
		t.Fatal("invariant violated: startDate must precede endDate")
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get after create failed: %v", err)
	}
	if got.SKU != created.SKU || got.Description != created.Description ||
		!got.StartDate.Equal(created.StartDate) || !got.EndDate.Equal(created.EndDate) ||
		!got.TotalPlanned.Equal(created.TotalPlanned) || got.Status != created.Status {
		t.Fatalf("get returned different record: %+v vs %+v", got, created)
	}
}

func TestCreateWithExplicitFields(t *testing.T) {
	svc, _ := newTestService(t)

	status := entity.DemandStatusInProgress
	production := dec(t, "12.50")
	req := validCreateRequest(t, "SKU-002")
	req.TotalProduction = &production
	req.Status = &status

	created, err := svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if created.Status != entity.DemandStatusInProgress {
		t.Fatalf("expected status In Progress, got %q", created.Status)
	}
	if !created.TotalProduction.Equal(production) {
		t.Fatalf("expected totalProduction 12.50, got %s", created.TotalProduction)
	}
}

func TestCreateDuplicateSKU(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, validCreateRequest(t, "SKU-DUP"))
	if err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	_, err = svc.Create(ctx, validCreateRequest(t, "SKU-DUP"))
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflictErr.SKU != "SKU-DUP" {
		t.Fatalf("expected conflicting sku in error, got %q", conflictErr.SKU)
	}

	// 首条记录不受影响
	got, err := svc.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("first record lost: %v", err)
	}
	if got.SKU != "SKU-DUP" {
		t.Fatalf("first record mutated: %+v", got)
	}
}

func TestCreateDateOrderInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name       string
		start, end string
	}{
		{"equal dates", "2026-03-15", "2026-03-15"},
		{"reversed dates", "2026-04-15", "2026-03-15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validCreateRequest(t, "SKU-ORDER")
			req.StartDate = tc.start
			req.EndDate = tc.end

			_, err := svc.Create(ctx, req)
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	// 失败不得留下记录
	demands, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(demands) != 0 {
		t.Fatalf("expected no records persisted, got %d", len(demands))
	}
}

func TestCreatePastStartDate(t *testing.T) {
	svc, _ := newTestService(t)

	req := validCreateRequest(t, "SKU-PAST")
	req.StartDate = "2026-03-09" // 相对固定时钟的昨天

	_, err := svc.Create(context.Background(), req)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "startDate" {
		t.Fatalf("expected startDate violation, got %q", validationErr.Field)
	}
}

func TestCreateStartDateToday(t *testing.T) {
	svc, _ := newTestService(t)

	req := validCreateRequest(t, "SKU-TODAY")
	req.StartDate = "2026-03-10"

	if _, err := svc.Create(context.Background(), req); err != nil {
		t.Fatalf("start date equal to current day must be allowed: %v", err)
	}
}

func TestCreateInvalidQuantities(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := validCreateRequest(t, "SKU-QTY")
	req.TotalPlanned = decimal.Zero
	if _, err := svc.Create(ctx, req); err == nil {
		t.Fatal("expected error for totalPlanned = 0")
	}

	req = validCreateRequest(t, "SKU-QTY")
	req.TotalPlanned = dec(t, "-1.00")
	if _, err := svc.Create(ctx, req); err == nil {
		t.Fatal("expected error for negative totalPlanned")
	}

	req = validCreateRequest(t, "SKU-QTY")
	negative := dec(t, "-0.01")
	req.TotalProduction = &negative
	if _, err := svc.Create(ctx, req); err == nil {
		t.Fatal("expected error for negative totalProduction")
	}
}

func TestCreateEmptySKU(t *testing.T) {
	svc, _ := newTestService(t)

	// 引擎自身必须拒绝空SKU，不依赖传输层的必填校验
	req := validCreateRequest(t, "")
	_, err := svc.Create(context.Background(), req)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if validationErr.Field != "sku" {
		t.Fatalf("expected sku violation, got %q", validationErr.Field)
	}

	demands, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(demands) != 0 {
		t.Fatalf("expected no records persisted, got %d", len(demands))
	}
}

func TestQuantityPrecision(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	// 超过两位小数的数量在引擎层拒绝，两种存储实现行为一致
	req := validCreateRequest(t, "SKU-PREC")
	req.TotalPlanned = dec(t, "10.123")
	var validationErr *ValidationError
	if _, err := svc.Create(ctx, req); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for totalPlanned 10.123, got %v", err)
	}

	req = validCreateRequest(t, "SKU-PREC")
	overScale := dec(t, "0.125")
	req.TotalProduction = &overScale
	if _, err := svc.Create(ctx, req); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for totalProduction 0.125, got %v", err)
	}

	req = validCreateRequest(t, "SKU-PREC")
	req.TotalPlanned = dec(t, "10.12")
	created, err := svc.Create(ctx, req)
	if err != nil {
		t.Fatalf("two decimal places must be accepted: %v", err)
	}

	production := dec(t, "3.333")
	if _, err := svc.Update(ctx, created.ID, &UpdateDemandRequest{TotalProduction: &production}); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError on update with totalProduction 3.333, got %v", err)
	}
	planned := dec(t, "99.999")
	if _, err := svc.Update(ctx, created.ID, &UpdateDemandRequest{TotalPlanned: &planned}); !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError on update with totalPlanned 99.999, got %v", err)
	}
}

func TestCreateBadDateFormat(t *testing.T) {
	svc, _ := newTestService(t)

	req := validCreateRequest(t, "SKU-FMT")
	req.StartDate = "15/03/2026"

	_, err := svc.Create(context.Background(), req)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestCreateUnknownStatus(t *testing.T) {
	svc, _ := newTestService(t)

	bogus := entity.DemandStatus("Cancelled")
	req := validCreateRequest(t, "SKU-STATUS")
	req.Status = &bogus

	_, err := svc.Create(context.Background(), req)
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

// seedDemand places a record directly into the store, bypassing engine checks
func seedDemand(store *memory.DemandStore, id uint, sku string, status entity.DemandStatus, start, end time.Time) {
	store.Seed(entity.Demand{
		ID:              id,
		SKU:             sku,
		StartDate:       start,
		EndDate:         end,
		TotalPlanned:    decimal.NewFromInt(10),
		TotalProduction: decimal.Zero,
		Status:          status,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	})
}

func TestStatusTransitionMatrix(t *testing.T) {
	futureStart := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	futureEnd := time.Date(2099, 6, 1, 0, 0, 0, 0, time.UTC)

	statuses := []entity.DemandStatus{
		entity.DemandStatusPlanning,
		entity.DemandStatusInProgress,
		entity.DemandStatusCompleted,
	}
	allowed := map[entity.DemandStatus]map[entity.DemandStatus]bool{
		entity.DemandStatusPlanning:   {entity.DemandStatusPlanning: true, entity.DemandStatusInProgress: true},
		entity.DemandStatusInProgress: {entity.DemandStatusPlanning: true, entity.DemandStatusInProgress: true, entity.DemandStatusCompleted: true},
		entity.DemandStatusCompleted:  {entity.DemandStatusInProgress: true, entity.DemandStatusCompleted: true},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			from, to := from, to
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				svc, store := newTestService(t)
				seedDemand(store, 1, "SKU-T", from, futureStart, futureEnd)

				target := to
				_, err := svc.Update(context.Background(), 1, &UpdateDemandRequest{Status: &target})

				if allowed[from][to] {
					if err != nil {
						t.Fatalf("transition %s -> %s must succeed: %v", from, to, err)
					}
					got, _ := svc.Get(context.Background(), 1)
					if got.Status != to {
						t.Fatalf("status not applied, got %q", got.Status)
					}
					return
				}

				var transitionErr *TransitionError
				if !errors.As(err, &transitionErr) {
					t.Fatalf("transition %s -> %s must fail with TransitionError, got %v", from, to, err)
				}
				if transitionErr.From != from || transitionErr.To != to {
					t.Fatalf("error must name both states, got %+v", transitionErr)
				}
			})
		}
	}
}

func TestUpdateRevalidatesDates(t *testing.T) {
	ctx := context.Background()

	t.Run("stored reversed range", func(t *testing.T) {
		svc, store := newTestService(t)
		// 直接写入一条日期顺序非法的记录
		seedDemand(store, 1, "SKU-BAD", entity.DemandStatusPlanning,
			time.Date(2099, 6, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC))

		desc := "仅改描述"
		_, err := svc.Update(ctx, 1, &UpdateDemandRequest{Description: &desc})
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("date check must re-run on every update, got %v", err)
		}
	})

	t.Run("stored past start date", func(t *testing.T) {
		svc, store := newTestService(t)
		seedDemand(store, 1, "SKU-OLD", entity.DemandStatusPlanning,
			time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

		desc := "仅改描述"
		_, err := svc.Update(ctx, 1, &UpdateDemandRequest{Description: &desc})
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("past-date check must re-run on every update, got %v", err)
		}
	})
}

func TestUpdateSKUConflict(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, validCreateRequest(t, "SKU-A"))
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := svc.Create(ctx, validCreateRequest(t, "SKU-B"))
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	taken := a.SKU
	_, err = svc.Update(ctx, b.ID, &UpdateDemandRequest{SKU: &taken})
	var conflictErr *ConflictError
	if !errors.As(err, &conflictErr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// 提交与自身相同的SKU不算冲突
	same := b.SKU
	if _, err := svc.Update(ctx, b.ID, &UpdateDemandRequest{SKU: &same}); err != nil {
		t.Fatalf("same-sku update must succeed: %v", err)
	}
}

func TestUpdateNotFound(t *testing.T) {
	svc, _ := newTestService(t)

	desc := "x"
	_, err := svc.Update(context.Background(), 42, &UpdateDemandRequest{Description: &desc})
	if !errors.Is(err, ErrDemandNotFound) {
		t.Fatalf("expected ErrDemandNotFound, got %v", err)
	}
}

func TestUpdateRoundTrip(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreateRequest(t, "SKU-RT"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sku := created.SKU
	description := created.Description
	startDate := created.StartDate.Format("2006-01-02")
	endDate := created.EndDate.Format("2006-01-02")
	planned := created.TotalPlanned
	production := created.TotalProduction
	status := created.Status

	updated, err := svc.Update(ctx, created.ID, &UpdateDemandRequest{
		SKU:             &sku,
		Description:     &description,
		StartDate:       &startDate,
		EndDate:         &endDate,
		TotalPlanned:    &planned,
		TotalProduction: &production,
		Status:          &status,
	})
	if err != nil {
		t.Fatalf("identity update must succeed: %v", err)
	}

	if updated.ID != created.ID || updated.SKU != created.SKU ||
		updated.Description != created.Description ||
		!updated.StartDate.Equal(created.StartDate) || !updated.EndDate.Equal(created.EndDate) ||
		!updated.TotalPlanned.Equal(created.TotalPlanned) ||
		!updated.TotalProduction.Equal(created.TotalProduction) ||
		updated.Status != created.Status {
		t.Fatalf("identity update changed fields: %+v vs %+v", updated, created)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Fatal("createdAt must never change")
	}
	if !updated.UpdatedAt.After(created.CreatedAt) {
		t.Fatal("updatedAt must be refreshed")
	}
}

func TestUpdateMergesPartialFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validCreateRequest(t, "SKU-MERGE"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	production := dec(t, "42.42")
	updated, err := svc.Update(ctx, created.ID, &UpdateDemandRequest{TotalProduction: &production})
	if err != nil {
		t.Fatalf("partial update: %v", err)
	}

	if !updated.TotalProduction.Equal(production) {
		t.Fatalf("totalProduction not applied, got %s", updated.TotalProduction)
	}
	if updated.SKU != created.SKU || updated.Description != created.Description ||
		!updated.TotalPlanned.Equal(created.TotalPlanned) || updated.Status != created.Status {
		t.Fatalf("unrelated fields changed: %+v", updated)
	}
}

func TestRemoveDemand(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Remove(ctx, 99); !errors.Is(err, ErrDemandNotFound) {
		t.Fatalf("removing unknown id must fail with not-found, got %v", err)
	}

	created, err := svc.Create(ctx, validCreateRequest(t, "SKU-DEL"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.Remove(ctx, created.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := svc.Get(ctx, created.ID); !errors.Is(err, ErrDemandNotFound) {
		t.Fatalf("expected not-found after delete, got %v", err)
	}
	// 删除不幂等：二次删除同一ID必须失败
	if err := svc.Remove(ctx, created.ID); !errors.Is(err, ErrDemandNotFound) {
		t.Fatalf("second delete must fail with not-found, got %v", err)
	}
}

func TestStatisticsEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	stats, err := svc.GetStatistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 0 || stats.Planning != 0 || stats.InProgress != 0 || stats.Completed != 0 {
		t.Fatalf("expected zero counts, got %+v", stats)
	}
	if !stats.TotalPlanned.Equal(decimal.Zero) || !stats.TotalProduced.Equal(decimal.Zero) {
		t.Fatalf("expected zero sums, got %+v", stats)
	}
}

func TestStatisticsSums(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inProgress := entity.DemandStatusInProgress
	for i, tc := range []struct {
		sku     string
		planned string
		status  *entity.DemandStatus
	}{
		{"SKU-S1", "10.00", nil},
		{"SKU-S2", "20.00", nil},
		{"SKU-S3", "5.50", &inProgress},
	} {
		req := validCreateRequest(t, tc.sku)
		req.TotalPlanned = dec(t, tc.planned)
		req.Status = tc.status
		if _, err := svc.Create(ctx, req); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	stats, err := svc.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("expected total 3, got %d", stats.Total)
	}
	if stats.Planning != 2 || stats.InProgress != 1 || stats.Completed != 0 {
		t.Fatalf("wrong status counts: %+v", stats)
	}
	if !stats.TotalPlanned.Equal(dec(t, "35.50")) {
		t.Fatalf("expected totalPlanned 35.50, got %s", stats.TotalPlanned)
	}
	if !stats.TotalProduced.Equal(decimal.Zero) {
		t.Fatalf("expected totalProduced 0, got %s", stats.TotalProduced)
	}
}

func TestListNewestFirst(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, sku := range []string{"SKU-L1", "SKU-L2", "SKU-L3"} {
		if _, err := svc.Create(ctx, validCreateRequest(t, sku)); err != nil {
			t.Fatalf("create %s: %v", sku, err)
		}
	}

	demands, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(demands) != 3 {
		t.Fatalf("expected 3 records, got %d", len(demands))
	}
	if demands[0].SKU != "SKU-L3" || demands[1].SKU != "SKU-L2" || demands[2].SKU != "SKU-L1" {
		t.Fatalf("expected newest first, got %s %s %s", demands[0].SKU, demands[1].SKU, demands[2].SKU)
	}
}

func TestExportDemands(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, validCreateRequest(t, "SKU-X1")); err != nil {
		t.Fatalf("create: %v", err)
	}

	f, filename, err := svc.Export(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer f.Close()

	if filename != "demands-20260310.xlsx" {
		t.Fatalf("unexpected filename %q", filename)
	}

	sku, err := f.GetCellValue("Demands", "B2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if sku != "SKU-X1" {
		t.Fatalf("expected SKU-X1 in first data row, got %q", sku)
	}
}
