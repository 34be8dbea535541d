package chip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/twchip/chipkline/internal/contracts"
	"github.com/twchip/chipkline/pkg/logger"
	"github.com/twchip/chipkline/pkg/redis"
)

// FlowSource fetches broker-branch data from the ranking site.
type FlowSource interface {
	FetchRanking(ctx context.Context, stockID, startDate, endDate string) contracts.RankingResult
	FetchBranchDaily(ctx context.Context, stockID string, id contracts.BranchIdentity, startDate, endDate string) []contracts.BranchDailyRecord
}

// PriceSource fetches daily OHLC history.
type PriceSource interface {
	History(ctx context.Context, stockID string, days int) ([]contracts.PriceBar, error)
	FetchDaily(ctx context.Context, stockID string) []contracts.PriceBar
}

// NameSource maps a stock ID to a company name, "" when unknown.
type NameSource interface {
	CompanyName(ctx context.Context, stockID string) string
}

// SnapshotStore persists fetched series. The service treats persistence as
// best-effort: a store failure is logged, never surfaced to the query.
type SnapshotStore interface {
	SavePriceBars(ctx context.Context, stockID string, epoch int64, bars []contracts.PriceBar) error
	SaveBranchDaily(ctx context.Context, stockID, branchKey string, epoch int64, records []contracts.BranchDailyRecord) error
}

// RankingView is the ranking answer for one query: both ranking tables plus
// the resolved window and display name.
type RankingView struct {
	StockID     string                  `json:"stock_id"`
	DisplayName string                  `json:"display_name"`
	StartDate   string                  `json:"start_date"`
	EndDate     string                  `json:"end_date"`
	Days        int                     `json:"days"`
	Degraded    bool                    `json:"degraded_range,omitempty"`
	Ranking     contracts.RankingResult `json:"ranking"`
}

// Service runs the per-query pipeline: resolve range, fetch ranking, fetch
// price, fetch branch detail, reconcile. Fetches within one query are
// strictly sequential; results are cached under epoch-scoped keys.
type Service struct {
	flows    FlowSource
	prices   PriceSource
	names    NameSource
	resolver *RangeResolver
	cache    *redis.Cache
	cacheTTL time.Duration
	store    SnapshotStore // optional
	logger   *logger.Logger

	mu          sync.Mutex
	subscribers map[chan contracts.QueryEvent]struct{}
}

// NewService wires the pipeline. store may be nil.
func NewService(flows FlowSource, prices PriceSource, names NameSource, cache *redis.Cache, cacheTTL time.Duration, store SnapshotStore, log *logger.Logger) *Service {
	return &Service{
		flows:       flows,
		prices:      prices,
		names:       names,
		resolver:    NewRangeResolver(prices, log),
		cache:       cache,
		cacheTTL:    cacheTTL,
		store:       store,
		logger:      log,
		subscribers: make(map[chan contracts.QueryEvent]struct{}),
	}
}

// Subscribe registers a progress listener. The returned cancel func must be
// called when the listener goes away. Slow listeners drop events rather
// than stall the pipeline.
func (s *Service) Subscribe() (<-chan contracts.QueryEvent, func()) {
	ch := make(chan contracts.QueryEvent, 16)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subscribers, ch)
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Service) publish(stockID string, state contracts.QueryState, detail string) {
	event := contracts.QueryEvent{StockID: stockID, State: state, Detail: detail}
	s.mu.Lock()
	for ch := range s.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"stock_id": stockID,
		"state":    state.String(),
	}).Debug("Query state transition")
}

// QueryRanking resolves the trading-day window and returns both ranking
// tables. An empty extraction is terminal for the query: the error is
// surfaced and nothing retries automatically.
func (s *Service) QueryRanking(ctx context.Context, stockID string, days int) (*RankingView, error) {
	s.publish(stockID, contracts.StateResolvingRange, "")
	start, end, degraded := s.resolver.Resolve(ctx, stockID, days)

	view := &RankingView{
		StockID:     stockID,
		DisplayName: s.displayName(ctx, stockID),
		StartDate:   start,
		EndDate:     end,
		Days:        days,
		Degraded:    degraded,
	}

	s.publish(stockID, contracts.StateFetchingRanking, fmt.Sprintf("%s~%s", start, end))
	epoch := s.cache.Epoch(ctx)
	key := redis.Key{Op: "ranking", Args: []string{stockID, start, end}, Epoch: epoch}

	var cached contracts.RankingResult
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		view.Ranking = cached
		s.publish(stockID, contracts.StateRankingReady, "cache")
		return view, nil
	}

	result := s.flows.FetchRanking(ctx, stockID, start, end)
	if result.Empty() {
		s.publish(stockID, contracts.StateFailed, "ranking extraction empty")
		return nil, fmt.Errorf("no ranking data for %s over %s~%s", stockID, start, end)
	}

	if err := s.cache.Set(ctx, key, result, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Ranking cache write failed")
	}

	view.Ranking = result
	s.publish(stockID, contracts.StateRankingReady, "")
	return view, nil
}

// QueryBranch fetches the 2-year price history and, when branchName is
// non-empty, the branch's daily flow, then reconciles the two. An unknown
// branch name or an empty detail extraction degrades to price-only output
// rather than failing: the price chart is still worth rendering.
func (s *Service) QueryBranch(ctx context.Context, stockID, branchName string, days int) (contracts.MergedSeries, error) {
	view, err := s.QueryRanking(ctx, stockID, days)
	if err != nil {
		return contracts.MergedSeries{}, err
	}

	s.publish(stockID, contracts.StateFetchingPrice, "")
	bars := s.fetchPrice(ctx, stockID)
	if len(bars) == 0 {
		s.publish(stockID, contracts.StateFailed, "no price history")
		return contracts.MergedSeries{}, fmt.Errorf("no price history for %s", stockID)
	}

	var records []contracts.BranchDailyRecord
	matchedName := ""
	if branchName != "" {
		id, ok := MatchIdentity(view.Ranking.Identities, branchName)
		if !ok {
			s.logger.WithFields(map[string]interface{}{
				"stock_id": stockID,
				"branch":   branchName,
			}).Warn("Branch name did not match any harvested identity")
		} else {
			matchedName = id.Key
			s.publish(stockID, contracts.StateFetchingBranchDetail, id.Key)
			// The detail fetch spans the whole price history, not the
			// ranking window: the cumulative line has to start from zero at
			// the left edge of the chart, two years back.
			records = s.fetchBranchDaily(ctx, stockID, id, bars[0].Date, bars[len(bars)-1].Date)
		}
	}

	series := Reconcile(stockID, matchedName, bars, records, view.StartDate, view.EndDate)
	s.publish(stockID, contracts.StateReconciled, "")
	return series, nil
}

// Refresh bumps the cache epoch so the next query refetches everything.
func (s *Service) Refresh(ctx context.Context) int64 {
	epoch := s.cache.BumpEpoch(ctx)
	s.logger.WithField("epoch", epoch).Info("Cache epoch bumped")
	return epoch
}

func (s *Service) displayName(ctx context.Context, stockID string) string {
	if s.names == nil {
		return stockID
	}
	if name := s.names.CompanyName(ctx, stockID); name != "" {
		return stockID + " " + name
	}
	return stockID
}

func (s *Service) fetchPrice(ctx context.Context, stockID string) []contracts.PriceBar {
	epoch := s.cache.Epoch(ctx)
	key := redis.Key{Op: "price", Args: []string{stockID}, Epoch: epoch}

	var cached []contracts.PriceBar
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached
	}

	bars := s.prices.FetchDaily(ctx, stockID)
	if len(bars) == 0 {
		return nil
	}

	if err := s.cache.Set(ctx, key, bars, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Price cache write failed")
	}
	if s.store != nil {
		if err := s.store.SavePriceBars(ctx, stockID, epoch, bars); err != nil {
			s.logger.WithError(err).Warn("Price snapshot save failed")
		}
	}
	return bars
}

func (s *Service) fetchBranchDaily(ctx context.Context, stockID string, id contracts.BranchIdentity, start, end string) []contracts.BranchDailyRecord {
	epoch := s.cache.Epoch(ctx)
	key := redis.Key{Op: "branch_daily", Args: []string{stockID, id.HashID, id.BranchID, start, end}, Epoch: epoch}

	var cached []contracts.BranchDailyRecord
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached
	}

	records := s.flows.FetchBranchDaily(ctx, stockID, id, start, end)
	if len(records) == 0 {
		return nil
	}

	if err := s.cache.Set(ctx, key, records, s.cacheTTL); err != nil {
		s.logger.WithError(err).Warn("Branch daily cache write failed")
	}
	if s.store != nil {
		if err := s.store.SaveBranchDaily(ctx, stockID, id.Key, epoch, records); err != nil {
			s.logger.WithError(err).Warn("Branch snapshot save failed")
		}
	}
	return records
}
