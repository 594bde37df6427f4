package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/epeers/fintel/internal/metrics"
	"github.com/epeers/fintel/internal/repository"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// PipelineConfig tunes the background pipeline. An empty schedule disables that job.
type PipelineConfig struct {
	Workers            int
	QueueSize          int
	RefreshSchedule    string
	PendingSchedule    string
	PredictionSchedule string
}

// Pipeline runs ingestion, training and prediction for queued assets on a fixed
// pool of workers, and re-enqueues assets on cron schedules.
type Pipeline struct {
	assets     repository.AssetStore
	ingestion  *IngestionService
	training   *TrainingService
	prediction *PredictionService
	metrics    *metrics.Recorder
	cfg        PipelineConfig

	queue   chan int64
	mu      sync.Mutex
	queued  map[int64]bool
	running bool

	cron   *cron.Cron
	cancel context.CancelFunc
	group  *errgroup.Group
	now    func() time.Time
}

// NewPipeline creates a new Pipeline
func NewPipeline(
	assets repository.AssetStore,
	ingestion *IngestionService,
	training *TrainingService,
	prediction *PredictionService,
	recorder *metrics.Recorder,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &Pipeline{
		assets:     assets,
		ingestion:  ingestion,
		training:   training,
		prediction: prediction,
		metrics:    recorder,
		cfg:        cfg,
		queue:      make(chan int64, cfg.QueueSize),
		queued:     make(map[int64]bool),
		now:        time.Now,
	}
}

// Enqueue schedules an asset for processing. An asset already waiting in the
// queue is not added twice. It reports false when the pipeline is stopped or
// the queue is full; the next scheduled cycle picks the asset up again.
func (p *Pipeline) Enqueue(assetID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return false
	}
	if p.queued[assetID] {
		return true
	}
	select {
	case p.queue <- assetID:
		p.queued[assetID] = true
		p.metrics.SetQueueDepth(len(p.queue))
		return true
	default:
		log.WithField("asset_id", assetID).Warn("pipeline queue full, dropping asset until the next cycle")
		return false
	}
}

// Start launches the workers and the cron jobs, then enqueues pending assets that
// are due so work interrupted by a restart resumes.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	logger := cron.PrintfLogger(log.StandardLogger())
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) error
	}{
		{"refresh", p.cfg.RefreshSchedule, p.RefreshAll},
		{"pending", p.cfg.PendingSchedule, p.RetryPending},
		{"prediction", p.cfg.PredictionSchedule, p.PredictAll},
	}
	for _, job := range jobs {
		if job.schedule == "" {
			continue
		}
		if _, err := c.AddFunc(job.schedule, func() {
			if err := job.run(ctx); err != nil {
				log.WithField("job", job.name).WithError(err).Error("scheduled job failed")
			}
		}); err != nil {
			cancel()
			return err
		}
	}

	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		group.Go(func() error {
			p.work(gctx)
			return nil
		})
	}

	p.mu.Lock()
	p.running = true
	p.cancel = cancel
	p.group = group
	p.cron = c
	p.mu.Unlock()

	c.Start()
	log.WithFields(log.Fields{
		"workers":    p.cfg.Workers,
		"queue_size": p.cfg.QueueSize,
	}).Info("pipeline started")

	return p.RetryPending(ctx)
}

// Stop halts the schedules, lets running jobs finish and waits for the workers
// to finish the asset they hold. Queued assets that were not started are dropped.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	c, cancel, group := p.cron, p.cancel, p.group
	p.mu.Unlock()

	<-c.Stop().Done()
	cancel()
	_ = group.Wait()
	log.Info("pipeline stopped")
}

func (p *Pipeline) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case assetID := <-p.queue:
			p.mu.Lock()
			delete(p.queued, assetID)
			p.metrics.SetQueueDepth(len(p.queue))
			p.mu.Unlock()

			if err := p.ProcessAsset(ctx, assetID); err != nil && ctx.Err() == nil {
				log.WithField("asset_id", assetID).WithError(err).Warn("pipeline run failed")
			}
		}
	}
}

// ProcessAsset runs one full cycle for an asset: ingestion, then training if the
// asset is active and its model is missing or stale, then predictions from a newly
// promoted model.
func (p *Pipeline) ProcessAsset(ctx context.Context, assetID int64) error {
	start := time.Now()
	result, err := p.ingestion.Ingest(ctx, assetID)
	trackStage("ingest", assetID, start)
	if err != nil {
		if errors.Is(err, repository.ErrAssetNotFound) {
			return nil
		}
		if !errors.Is(err, ErrAllProvidersFailed) || result == nil {
			return err
		}
		// Stored history may still warrant training after a failed refresh.
		log.WithField("asset_id", assetID).WithError(err).Warn("ingestion failed")
	}
	if result == nil || result.Asset == nil || !result.Asset.IsActive() {
		return nil
	}

	start = time.Now()
	outcome, err := p.training.TrainIfNeeded(ctx, assetID)
	trackStage("train", assetID, start)
	if errors.Is(err, ErrTrainingCoalesced) {
		return nil
	}
	if err != nil {
		return err
	}
	if !outcome.Trained {
		return nil
	}

	defer trackStage("predict", assetID, time.Now())
	_, err = p.prediction.Generate(ctx, assetID, true)
	return err
}

// RefreshAll enqueues every tracked asset
func (p *Pipeline) RefreshAll(ctx context.Context) error {
	assets, err := p.assets.ListAll(ctx)
	if err != nil {
		return err
	}
	for _, a := range assets {
		p.Enqueue(a.ID)
	}
	log.WithField("assets", len(assets)).Debug("enqueued refresh")
	return nil
}

// RetryPending enqueues pending assets whose next attempt is due
func (p *Pipeline) RetryPending(ctx context.Context) error {
	assets, err := p.assets.ListPendingDue(ctx, p.now())
	if err != nil {
		return err
	}
	for _, a := range assets {
		p.Enqueue(a.ID)
	}
	if len(assets) > 0 {
		log.WithField("assets", len(assets)).Info("enqueued pending assets")
	}
	return nil
}

// PredictAll regenerates predictions from the current model of every active asset.
// Assets without a model are skipped; one failing asset does not stop the sweep.
func (p *Pipeline) PredictAll(ctx context.Context) error {
	defer TrackTime("PredictAll", p.now())

	assets, err := p.assets.ListActive(ctx)
	if err != nil {
		return err
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, a := range assets {
		g.Go(func() error {
			_, err := p.prediction.Generate(ctx, a.ID, false)
			switch {
			case err == nil, errors.Is(err, repository.ErrNoCurrentModel):
			case ctx.Err() != nil:
				return ctx.Err()
			default:
				log.WithField("symbol", a.Symbol).WithError(err).Warn("prediction sweep failed for asset")
			}
			return nil
		})
	}
	return g.Wait()
}
