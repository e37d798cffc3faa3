package application

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/ifrs2tools/equityval/internal/valuation/domain"
	"github.com/ifrs2tools/equityval/pkg/utils"
)

type fakeRepo struct {
	saved  []*domain.ValuationRecord
	getErr error
}

func (r *fakeRepo) Save(ctx context.Context, rec *domain.ValuationRecord) error {
	r.saved = append(r.saved, rec)
	return nil
}

func (r *fakeRepo) GetByValuationID(ctx context.Context, id string) (*domain.ValuationRecord, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	for _, rec := range r.saved {
		if rec.ValuationID == id {
			return rec, nil
		}
	}
	return nil, errors.New("valuation not found")
}

func (r *fakeRepo) ListByPlan(ctx context.Context, planName string, limit int) ([]*domain.ValuationRecord, error) {
	var out []*domain.ValuationRecord
	for _, rec := range r.saved {
		if rec.PlanName == planName && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

type fakeCache struct {
	entries map[string]string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]string{}}
}

func (c *fakeCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	val, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(val), dest)
}

func (c *fakeCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = string(data)
	return nil
}

type publishedEvent struct {
	topic string
	key   string
	value interface{}
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) SendMessage(ctx context.Context, topic, key string, value interface{}) error {
	p.events = append(p.events, publishedEvent{topic: topic, key: key, value: value})
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(repo *fakeRepo, cache *fakeCache, pub *fakePublisher, cfg Config) *ValuationService {
	if cfg.RateConvention == "" {
		cfg.RateConvention = "continuous"
	}
	if cfg.ValuationTopic == "" {
		cfg.ValuationTopic = "valuation.completed"
	}
	var rc ResultCache
	if cache != nil {
		rc = cache
	}
	var ep EventPublisher
	if pub != nil {
		ep = pub
	}
	return NewValuationService(domain.Aggregator{}, repo, rc, ep, nil, discardLogger(), cfg)
}

func baseRequest() *ValuationRequest {
	return &ValuationRequest{
		PlanName: "ESOP 2024",
		Market: MarketParamsDTO{
			Spot: 100, Strike: 100, Volatility: 0.20, RiskFreeRate: 0.05,
		},
		Tranches: []TrancheDTO{
			{VestingYears: 1, Proportion: 0.5},
			{VestingYears: 2, Proportion: 0.5},
		},
		ModelOverride: string(domain.PricingModelBlackScholesGraded),
	}
}

func TestValuePlan_PersistsCachesAndPublishes(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	cache := newFakeCache()
	pub := &fakePublisher{}
	svc := newService(repo, cache, pub, Config{CacheTTL: time.Minute})

	dto, err := svc.ValuePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("ValuePlan: %v", err)
	}

	want := domain.PriceCall(100, 100, 5, 0.05, 0.20, 0)
	got, err := strconv.ParseFloat(dto.TotalFairValue, 64)
	if err != nil {
		t.Fatalf("total_fair_value %q not numeric: %v", dto.TotalFairValue, err)
	}
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("total = %v, want %v", got, want)
	}
	if dto.Currency != "BRL" {
		t.Fatalf("currency = %q, want default BRL", dto.Currency)
	}

	if len(repo.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(repo.saved))
	}
	if repo.saved[0].ValuationID != dto.ValuationID {
		t.Fatalf("saved id %q != returned id %q", repo.saved[0].ValuationID, dto.ValuationID)
	}

	if _, ok := cache.entries["valuation:"+dto.ValuationID]; !ok {
		t.Fatal("result was not cached")
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].topic != "valuation.completed" || pub.events[0].key != dto.ValuationID {
		t.Fatalf("event topic/key = %q/%q", pub.events[0].topic, pub.events[0].key)
	}
	event, ok := pub.events[0].value.(domain.ValuationCompletedEvent)
	if !ok {
		t.Fatalf("event payload has type %T", pub.events[0].value)
	}
	if event.Model != domain.PricingModelBlackScholesGraded || event.TrancheCount != 2 {
		t.Fatalf("event = %+v", event)
	}
}

func TestValuePlan_EffectiveRateConversion(t *testing.T) {
	t.Parallel()

	svc := newService(&fakeRepo{}, nil, nil, Config{RateConvention: "effective"})

	dto, err := svc.ValuePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("ValuePlan: %v", err)
	}

	// 年化有效 5% 先换算为连续复利 ln(1.05)
	want := domain.PriceCall(100, 100, 5, math.Log(1.05), 0.20, 0)
	got, _ := strconv.ParseFloat(dto.TotalFairValue, 64)
	if math.Abs(got-want) > 1e-6 {
		t.Fatalf("total = %v, want %v (continuous rate)", got, want)
	}
}

func TestValuePlan_ParallelMatchesSerial(t *testing.T) {
	t.Parallel()

	req := &ValuationRequest{
		PlanName: "graded lattice plan",
		Features: FeaturesDTO{TurnoverRate: 0.05, LockupYears: 0.5},
		Market: MarketParamsDTO{
			Spot: 50, Strike: 55, Volatility: 0.35, RiskFreeRate: 0.08, DividendYield: 0.02,
		},
		Tranches: []TrancheDTO{
			{VestingYears: 1, Proportion: 0.25},
			{VestingYears: 2, Proportion: 0.25},
			{VestingYears: 3, Proportion: 0.25},
			{VestingYears: 4, Proportion: 0.25},
		},
	}
	svc := newService(&fakeRepo{}, nil, nil, Config{MaxConcurrentTranches: 2})

	dto, err := svc.ValuePlan(context.Background(), req)
	if err != nil {
		t.Fatalf("ValuePlan: %v", err)
	}
	if dto.Model != string(domain.PricingModelBinomial) {
		t.Fatalf("model = %s, want BINOMIAL (lockup set)", dto.Model)
	}

	plan := req.toPlan()
	serial, err := domain.Aggregator{}.ValuePlan(plan)
	if err != nil {
		t.Fatalf("serial ValuePlan: %v", err)
	}
	got, _ := strconv.ParseFloat(dto.TotalFairValue, 64)
	if math.Abs(got-serial.TotalFairValue) > 1e-9 {
		t.Fatalf("parallel total %v != serial total %v", got, serial.TotalFairValue)
	}
	for i, tr := range dto.Tranches {
		if tr.TrancheIndex != i {
			t.Fatalf("tranche order broken at %d: index %d", i, tr.TrancheIndex)
		}
	}
}

func TestValuePlan_ValidationErrorNotPersisted(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	pub := &fakePublisher{}
	svc := newService(repo, nil, pub, Config{})

	req := baseRequest()
	req.Market.Volatility = -1

	_, err := svc.ValuePlan(context.Background(), req)
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want *domain.ValidationError", err)
	}
	if len(repo.saved) != 0 {
		t.Fatal("invalid plan must not be persisted")
	}
	if len(pub.events) != 0 {
		t.Fatal("invalid plan must not publish events")
	}
}

func TestGetValuation_CacheHitSkipsRepository(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	cached := ValuationDTO{ValuationID: "v-1", PlanName: "cached plan", TotalFairValue: "42"}
	if err := cache.SetJSON(context.Background(), "valuation:v-1", cached, 0); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	repo := &fakeRepo{getErr: errors.New("repository must not be hit")}
	svc := newService(repo, cache, nil, Config{})

	dto, err := svc.GetValuation(context.Background(), "v-1")
	if err != nil {
		t.Fatalf("GetValuation: %v", err)
	}
	if dto.PlanName != "cached plan" || dto.TotalFairValue != "42" {
		t.Fatalf("got %+v, want cached copy", dto)
	}
}

func TestGetValuation_CacheMissFallsBackToRepository(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	cache := newFakeCache()
	svc := newService(repo, cache, nil, Config{CacheTTL: time.Minute})

	created, err := svc.ValuePlan(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("ValuePlan: %v", err)
	}
	// 清空缓存模拟过期
	cache.entries = map[string]string{}

	dto, err := svc.GetValuation(context.Background(), created.ValuationID)
	if err != nil {
		t.Fatalf("GetValuation: %v", err)
	}
	if dto.ValuationID != created.ValuationID {
		t.Fatalf("id = %q, want %q", dto.ValuationID, created.ValuationID)
	}
	// 回填缓存
	if _, ok := cache.entries["valuation:"+created.ValuationID]; !ok {
		t.Fatal("cache was not repopulated after miss")
	}
}

func TestListValuations(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	svc := newService(repo, nil, nil, Config{})

	for i := 0; i < 3; i++ {
		req := baseRequest()
		req.PlanName = "plan A"
		if _, err := svc.ValuePlan(context.Background(), req); err != nil {
			t.Fatalf("ValuePlan %d: %v", i, err)
		}
	}
	other := baseRequest()
	other.PlanName = "plan B"
	if _, err := svc.ValuePlan(context.Background(), other); err != nil {
		t.Fatalf("ValuePlan other: %v", err)
	}

	dtos, err := svc.ListValuations(context.Background(), "plan A", 2)
	if err != nil {
		t.Fatalf("ListValuations: %v", err)
	}
	if len(dtos) != 2 {
		t.Fatalf("got %d valuations, want 2 (limit)", len(dtos))
	}
	for _, dto := range dtos {
		if dto.PlanName != "plan A" {
			t.Fatalf("unexpected plan %q in listing", dto.PlanName)
		}
	}
}

func TestRecommendModel(t *testing.T) {
	t.Parallel()

	svc := newService(&fakeRepo{}, nil, nil, Config{})

	rec, err := svc.RecommendModel(context.Background(), &RecommendationRequest{
		Features: FeaturesDTO{HasMarketCondition: true},
		Tranches: []TrancheDTO{{VestingYears: 2, Proportion: 1}},
	})
	if err != nil {
		t.Fatalf("RecommendModel: %v", err)
	}
	if rec.Model != string(domain.PricingModelMonteCarlo) {
		t.Fatalf("model = %s, want MONTE_CARLO", rec.Model)
	}
	if rec.WeightedAverageVesting != 2 {
		t.Fatalf("weighted vesting = %v, want 2", rec.WeightedAverageVesting)
	}
	if rec.Rationale == "" {
		t.Fatal("rationale must not be empty")
	}
}

func TestToPlan_Defaults(t *testing.T) {
	t.Parallel()

	req := baseRequest()
	plan := req.toPlan()
	if plan.Features.OptionLifeYears != 5 {
		t.Fatalf("option life default = %v, want 5", plan.Features.OptionLifeYears)
	}
	if plan.Features.EarlyExerciseMultiple != 2 {
		t.Fatalf("early exercise multiple default = %v, want 2", plan.Features.EarlyExerciseMultiple)
	}

	req.Features.OptionLifeYears = utils.Float64Ptr(7)
	req.Features.EarlyExerciseMultiple = utils.Float64Ptr(0)
	plan = req.toPlan()
	if plan.Features.OptionLifeYears != 7 {
		t.Fatalf("option life = %v, want explicit 7", plan.Features.OptionLifeYears)
	}
	if plan.Features.EarlyExerciseMultiple != 0 {
		t.Fatalf("early exercise multiple = %v, want explicit 0 (disabled)", plan.Features.EarlyExerciseMultiple)
	}
}
