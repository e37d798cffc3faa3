package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ifrs2tools/equityval/internal/valuation/domain"
	"github.com/ifrs2tools/equityval/pkg/metrics"
)

// ResultCache 估值结果的旁路缓存
type ResultCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// EventPublisher 领域事件发布
type EventPublisher interface {
	SendMessage(ctx context.Context, topic string, key string, value interface{}) error
}

// Config 估值服务配置
type Config struct {
	// 利率报价惯例：continuous 或 effective
	RateConvention string
	// 结果缺省币种
	Currency string
	// 结果缓存 TTL
	CacheTTL time.Duration
	// 估值完成事件主题
	ValuationTopic string
	// 单计划批次定价的最大并行度
	MaxConcurrentTranches int
}

// ValuationService 估值应用服务。编排输入换算、模型选择、
// 并行批次定价、落库、缓存与事件发布。
type ValuationService struct {
	agg      domain.Aggregator
	repo     domain.ValuationRepository
	cache    ResultCache
	producer EventPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	cfg      Config
}

// NewValuationService 创建估值应用服务。cache、producer、metrics 允许为 nil（降级运行）。
func NewValuationService(
	agg domain.Aggregator,
	repo domain.ValuationRepository,
	cache ResultCache,
	producer EventPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	cfg Config,
) *ValuationService {
	if cfg.MaxConcurrentTranches <= 0 {
		cfg.MaxConcurrentTranches = 8
	}
	if cfg.Currency == "" {
		cfg.Currency = "BRL"
	}
	return &ValuationService{
		agg:      agg,
		repo:     repo,
		cache:    cache,
		producer: producer,
		metrics:  m,
		logger:   logger,
		cfg:      cfg,
	}
}

// ValuePlan 对计划估值并持久化结果
func (s *ValuationService) ValuePlan(ctx context.Context, req *ValuationRequest) (*ValuationDTO, error) {
	start := time.Now()

	plan := req.toPlan()
	s.normalizeRates(&plan)

	result, err := s.valuePlan(ctx, plan)
	if err != nil {
		if s.metrics != nil {
			s.metrics.ValuationErrorsTotal.Inc()
		}
		return nil, err
	}

	currency := req.Currency
	if currency == "" {
		currency = s.cfg.Currency
	}

	valuationID := uuid.New().String()
	rec := domain.NewValuationRecord(valuationID, req.PlanName, currency, result)
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save valuation: %w", err)
	}

	dto := recordToDTO(rec)

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey(valuationID), dto, s.cfg.CacheTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to cache valuation", "valuation_id", valuationID, "error", err)
		}
	}

	if s.producer != nil {
		event := domain.ValuationCompletedEvent{
			ValuationID:    valuationID,
			PlanName:       req.PlanName,
			Currency:       currency,
			Model:          result.Model,
			TotalFairValue: result.TotalFairValue,
			TrancheCount:   len(result.Tranches),
			OccurredOn:     time.Now().UTC(),
		}
		if err := s.producer.SendMessage(ctx, s.cfg.ValuationTopic, valuationID, event); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish valuation event", "valuation_id", valuationID, "error", err)
		}
	}

	if s.metrics != nil {
		s.metrics.ValuationsTotal.WithLabelValues(string(result.Model)).Inc()
		s.metrics.TranchesPricedTotal.Add(float64(len(result.Tranches)))
		s.metrics.ValuationDuration.Observe(time.Since(start).Seconds())
		if result.Model == domain.PricingModelMonteCarlo {
			s.metrics.StochasticDelegationsTotal.Add(float64(len(result.Tranches)))
		}
	}

	s.logger.InfoContext(ctx, "plan valued",
		"valuation_id", valuationID,
		"plan_name", req.PlanName,
		"model", result.Model,
		"tranches", len(result.Tranches),
		"total_fair_value", rec.TotalFairValue.String(),
	)
	return dto, nil
}

// valuePlan 选定模型后并行为各批次定价。结果顺序与输入批次一致，
// 与串行计算完全相同。
func (s *ValuationService) valuePlan(ctx context.Context, plan domain.Plan) (*domain.ValuationResult, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	model := plan.ModelOverride
	rationale := "model explicitly overridden by caller"
	if model == "" || model == domain.PricingModelUndefined {
		model, rationale = domain.SelectModel(plan.Features, plan.Tranches)
	}

	result := &domain.ValuationResult{
		Model:     model,
		Rationale: rationale,
		Tranches:  make([]domain.TrancheResult, len(plan.Tranches)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentTranches)
	for i := range plan.Tranches {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			tr, err := s.agg.ValueTranche(plan, model, i)
			if err != nil {
				return err
			}
			result.Tranches[i] = tr
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, tr := range result.Tranches {
		result.TotalFairValue += tr.WeightedFairValue
	}
	return result, nil
}

// GetValuation 按估值 ID 查询，优先走缓存
func (s *ValuationService) GetValuation(ctx context.Context, valuationID string) (*ValuationDTO, error) {
	if s.cache != nil {
		var cached ValuationDTO
		hit, err := s.cache.GetJSON(ctx, cacheKey(valuationID), &cached)
		if err != nil {
			s.logger.WarnContext(ctx, "cache lookup failed", "valuation_id", valuationID, "error", err)
		} else if hit {
			if s.metrics != nil {
				s.metrics.CacheHitsTotal.Inc()
			}
			return &cached, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMissesTotal.Inc()
		}
	}

	rec, err := s.repo.GetByValuationID(ctx, valuationID)
	if err != nil {
		return nil, err
	}

	dto := recordToDTO(rec)
	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, cacheKey(valuationID), dto, s.cfg.CacheTTL); err != nil {
			s.logger.WarnContext(ctx, "failed to cache valuation", "valuation_id", valuationID, "error", err)
		}
	}
	return dto, nil
}

// ListValuations 按计划名查询历史估值
func (s *ValuationService) ListValuations(ctx context.Context, planName string, limit int) ([]*ValuationDTO, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	recs, err := s.repo.ListByPlan(ctx, planName, limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]*ValuationDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = recordToDTO(rec)
	}
	return dtos, nil
}

// RecommendModel 仅返回模型推荐，不触发定价与落库
func (s *ValuationService) RecommendModel(ctx context.Context, req *RecommendationRequest) (*RecommendationDTO, error) {
	full := ValuationRequest{
		Features: req.Features,
		Market:   MarketParamsDTO{Spot: 1},
		Tranches: req.Tranches,
	}
	plan := full.toPlan()
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	model, rationale := domain.SelectModel(plan.Features, plan.Tranches)
	return &RecommendationDTO{
		Model:                  string(model),
		Rationale:              rationale,
		WeightedAverageVesting: domain.WeightedAverageVesting(plan.Tranches),
	}, nil
}

// normalizeRates 按报价惯例把年化有效利率换算为连续复利。
// 核心引擎只接受连续复利。
func (s *ValuationService) normalizeRates(plan *domain.Plan) {
	if s.cfg.RateConvention != "effective" {
		return
	}
	plan.Market.RiskFreeRate = domain.ContinuousRate(plan.Market.RiskFreeRate)
	for i := range plan.Tranches {
		if plan.Tranches[i].Market != nil {
			m := *plan.Tranches[i].Market
			m.RiskFreeRate = domain.ContinuousRate(m.RiskFreeRate)
			plan.Tranches[i].Market = &m
		}
	}
}

func cacheKey(valuationID string) string {
	return "valuation:" + valuationID
}
