// Package analysis answers stock queries: it fetches the Stockbit feeds,
// reconciles them with stored history, computes targets and schedules
// write-behind persistence.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/bandarscope/internal/jobs"
	"github.com/rewired-gh/bandarscope/internal/logger"
	"github.com/rewired-gh/bandarscope/internal/models"
	"github.com/rewired-gh/bandarscope/internal/stockbit"
	"github.com/rewired-gh/bandarscope/internal/targets"
)

// ErrNoBrokerData means the feed had no broker activity for the period and
// nothing is stored for the ticker either.
var ErrNoBrokerData = errors.New("Data broker tidak tersedia untuk periode ini (Market belum buka atau saham tidak aktif)")

// Feed is the upstream market data source.
type Feed interface {
	FetchMarketDetector(ctx context.Context, emiten, from, to string) (*stockbit.MarketDetectorResponse, error)
	FetchOrderbook(ctx context.Context, emiten string) (*stockbit.OrderbookResponse, error)
	FetchEmitenInfo(ctx context.Context, emiten string) (*stockbit.EmitenInfoResponse, error)
}

// Store reads and writes persisted query records.
type Store interface {
	LatestStockQuery(ctx context.Context, emiten string) (*models.StockQuery, error)
	StockQueryByDate(ctx context.Context, emiten, date string) (*models.StockQuery, error)
	SaveStockQuery(ctx context.Context, q *models.StockQuery) error
	RotateStockQueries(ctx context.Context) error
}

// Submitter schedules background work without blocking.
type Submitter interface {
	Submit(name string, fn jobs.Func) error
}

// Notifier delivers freshly computed targets.
type Notifier interface {
	SendTargets(ctx context.Context, r *models.Result) error
}

// Config tunes the service.
type Config struct {
	SummarySize int
	// RotateEvery runs storage rotation on the first save and then once per
	// RotateEvery saves.
	RotateEvery int
	Location    *time.Location
	Now         func() time.Time
}

// DefaultConfig returns UTC dates, a five-row broker summary and rotation on
// every save.
func DefaultConfig() Config {
	return Config{
		SummarySize: 5,
		RotateEvery: 1,
		Location:    time.UTC,
		Now:         time.Now,
	}
}

// Service runs stock queries. It holds no per-request state.
type Service struct {
	feed     Feed
	store    Store
	queue    Submitter
	notifier Notifier
	config   Config

	saves atomic.Int64
}

// New creates a Service. notifier may be nil.
func New(feed Feed, store Store, queue Submitter, notifier Notifier, config Config) *Service {
	if config.SummarySize <= 0 {
		config.SummarySize = 5
	}
	if config.RotateEvery <= 0 {
		config.RotateEvery = 1
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Service{
		feed:     feed,
		store:    store,
		queue:    queue,
		notifier: notifier,
		config:   config,
	}
}

type feeds struct {
	detector  *stockbit.MarketDetectorResponse
	orderbook *stockbit.OrderbookResponse
	sector    string
}

// Analyze computes the targets for q.
func (s *Service) Analyze(ctx context.Context, q models.Query) (*models.Result, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return nil, err
	}

	f, err := s.fetch(ctx, q)
	if err != nil {
		return nil, err
	}

	if f.detector != nil && f.detector.Malformed {
		logger.Warn("Market detector for %s has an unexpected shape; treating it as empty", q.Emiten)
	}
	broker, found := stockbit.DominantBroker(f.detector)
	if !found {
		return s.fromHistory(ctx, q)
	}

	snap, err := stockbit.NormalizeOrderbook(f.orderbook)
	if err != nil {
		return nil, err
	}

	if q.ToDate != s.today() {
		rec, err := s.store.StockQueryByDate(ctx, q.Emiten, q.ToDate)
		if err != nil {
			return nil, fmt.Errorf("failed to read stored price for %s: %w", q.ToDate, err)
		}
		if rec != nil {
			logger.Debug("Using stored snapshot for %s on %s", q.Emiten, q.ToDate)
			snap = rec.Snapshot()
		}
	}

	result := models.NewResult(q, broker, snap, targets.ForSnapshot(broker, snap))
	result.BrokerSummary = stockbit.SummarizeBrokers(f.detector, s.config.SummarySize)
	result.Sector = f.sector

	if q.IsSingleDate() {
		s.persist(result)
	}
	return result, nil
}

// fetch loads the three feeds concurrently. Only the instrument info may fail.
func (s *Service) fetch(ctx context.Context, q models.Query) (*feeds, error) {
	var f feeds
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		resp, err := s.feed.FetchMarketDetector(gctx, q.Emiten, q.FromDate, q.ToDate)
		if err != nil {
			return err
		}
		f.detector = resp
		return nil
	})
	g.Go(func() error {
		resp, err := s.feed.FetchOrderbook(gctx, q.Emiten)
		if err != nil {
			return err
		}
		f.orderbook = resp
		return nil
	})
	g.Go(func() error {
		resp, err := s.feed.FetchEmitenInfo(gctx, q.Emiten)
		if err != nil {
			logger.Debug("Emiten info for %s unavailable: %v", q.Emiten, err)
			return nil
		}
		if resp != nil {
			f.sector = resp.Data.Sector
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &f, nil
}

// fromHistory serves the latest stored record when the feed has no broker rows.
func (s *Service) fromHistory(ctx context.Context, q models.Query) (*models.Result, error) {
	rec, err := s.store.LatestStockQuery(ctx, q.Emiten)
	if err != nil {
		return nil, fmt.Errorf("failed to read history for %s: %w", q.Emiten, err)
	}
	if rec == nil {
		return nil, ErrNoBrokerData
	}

	broker := rec.Broker()
	snap := rec.Snapshot()
	stored := models.Query{Emiten: q.Emiten, FromDate: rec.FromDate, ToDate: rec.ToDate}

	result := models.NewResult(stored, broker, snap, targets.ForSnapshot(broker, snap))
	result.Sector = rec.Sector
	result.MarkFromHistory(rec.FromDate != q.FromDate || rec.ToDate != q.ToDate, rec.FromDate)
	return result, nil
}

// persist schedules the save and the optional notification. Neither is awaited.
func (s *Service) persist(result *models.Result) {
	if s.queue == nil {
		return
	}
	rec := models.NewStockQuery(result, s.config.Now())
	name := "save " + rec.Emiten + " " + rec.ToDate
	_ = s.queue.Submit(name, func(ctx context.Context) error {
		if err := s.store.SaveStockQuery(ctx, rec); err != nil {
			return err
		}
		if (s.saves.Add(1)-1)%int64(s.config.RotateEvery) != 0 {
			return nil
		}
		return s.store.RotateStockQueries(ctx)
	})

	if s.notifier != nil {
		_ = s.queue.Submit("notify "+rec.Emiten, func(ctx context.Context) error {
			return s.notifier.SendTargets(ctx, result)
		})
	}
}

func (s *Service) today() string {
	return s.config.Now().In(s.config.Location).Format(models.DateLayout)
}
