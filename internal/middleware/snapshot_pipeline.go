package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/pkg/util"
)

// Ingester is the downstream the pipeline forwards accepted snapshots to.
type Ingester interface {
	Ingest(ctx context.Context, s *models.MarketSnapshot) error
}

// SnapshotPipeline sits between the snapshot feed and the market service.
// It validates, throttles per symbol, optionally transforms, and buffers
// when downstream is unavailable.
type SnapshotPipeline struct {
	next     Ingester
	metrics  domrepo.Metrics
	maxRPS   int
	bufSize  int
	bufCh    chan *models.MarketSnapshot
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
	mu       sync.Mutex
	lastSeen map[string]time.Time

	transform func(*models.MarketSnapshot) *models.MarketSnapshot
	now       func() time.Time
}

type PipelineOption func(*SnapshotPipeline)

// WithMaxRPS sets the max snapshots per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the retry buffer size used while downstream fails.
func WithBufferSize(n int) PipelineOption {
	return func(p *SnapshotPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithTransform sets a hook applied to each snapshot before forwarding.
func WithTransform(fn func(*models.MarketSnapshot) *models.MarketSnapshot) PipelineOption {
	return func(p *SnapshotPipeline) { p.transform = fn }
}

func withPipelineClock(now func() time.Time) PipelineOption {
	return func(p *SnapshotPipeline) { p.now = now }
}

// NormalizeSymbols upper-cases and trims snapshot symbols.
func NormalizeSymbols(s *models.MarketSnapshot) *models.MarketSnapshot {
	s.Symbol = util.NormalizeSymbol(s.Symbol)
	return s
}

func NewSnapshotPipeline(next Ingester, metrics domrepo.Metrics, opts ...PipelineOption) *SnapshotPipeline {
	p := &SnapshotPipeline{
		next:     next,
		metrics:  metrics,
		maxRPS:   5,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.MarketSnapshot, p.bufSize)
	return p
}

// Start launches the background flush of buffered snapshots.
func (p *SnapshotPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		defer close(p.doneCh)
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			case s := <-p.bufCh:
				if err := p.next.Ingest(ctx, s); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					select {
					case <-time.After(backoff):
					case <-p.stopCh:
						return
					}
					select {
					case p.bufCh <- s:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
					continue
				}
				backoff = 50 * time.Millisecond
			}
		}
	}()
}

// Stop ends the background flush and waits for it to exit.
func (p *SnapshotPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.doneCh
}

// Buffered returns the number of snapshots awaiting retry.
func (p *SnapshotPipeline) Buffered() int { return len(p.bufCh) }

// Ingest validates, throttles and forwards s. Throttled snapshots are
// dropped silently; downstream failures buffer s for retry.
func (p *SnapshotPipeline) Ingest(ctx context.Context, s *models.MarketSnapshot) error {
	start := p.now()
	if err := validateSnapshot(s); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		s = p.transform(s)
		if err := validateSnapshot(s); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if !p.allow(s.Symbol, start) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.next.Ingest(ctx, s); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- s:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", p.now().Sub(start).Seconds())
	return nil
}

func validateSnapshot(s *models.MarketSnapshot) error {
	if s == nil {
		return fmt.Errorf("snapshot nil")
	}
	if s.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if s.Timestamp.IsZero() {
		return fmt.Errorf("timestamp missing")
	}
	if s.Price <= 0 || s.Volume < 0 {
		return fmt.Errorf("invalid price/volume")
	}
	return nil
}

func (p *SnapshotPipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	last, ok := p.lastSeen[symbol]
	if ok && now.Sub(last) < time.Second/time.Duration(p.maxRPS) {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
