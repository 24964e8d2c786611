package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/wildfire-hex-etl/internal/config"
	"github.com/couchcryptid/wildfire-hex-etl/internal/domain"
	"github.com/couchcryptid/wildfire-hex-etl/internal/hexgrid"
	"github.com/couchcryptid/wildfire-hex-etl/internal/lake"
	"github.com/couchcryptid/wildfire-hex-etl/internal/observability"
)

// Stage names accepted by Run.
const (
	StageInit     = "init"
	StageDownload = "download"
	StageClean    = "clean"
	StageHexes    = "hexes"
	StageExport   = "export"
	StagePublish  = "publish"
	StageAll      = "all"
)

// Stages lists the runnable stages in execution order, followed by "all".
var Stages = []string{StageInit, StageDownload, StageClean, StageHexes, StageExport, StagePublish, StageAll}

// ErrUnknownStage is returned by Run for a stage name it does not know.
var ErrUnknownStage = errors.New("unknown stage")

// ErrPublishDisabled is returned by the publish stage when no publisher is set.
var ErrPublishDisabled = errors.New("publishing is disabled")

// Downloader fetches upstream GHCN-D files.
type Downloader interface {
	StationsURL() string
	DailyURL(year int) string
	ReadmeURL() string
	Download(ctx context.Context, url, dest string) (int64, error)
}

// Publisher sends curated hex records downstream.
type Publisher interface {
	PublishBatch(ctx context.Context, records []domain.HexRecord) error
}

// Options are the run settings of a Pipeline.
type Options struct {
	StartYear          int
	EndYear            int
	Elements           []domain.Element
	StationPrefixes    []string
	AverageWindowDays  int
	FirePointsPath     string
	FirePerimetersPath string
	PredictionsPath    string
	PublishBatchSize   int
}

// OptionsFromConfig builds Options from the loaded configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	elements := make([]domain.Element, 0, len(cfg.Elements))
	for _, code := range cfg.Elements {
		e, ok := domain.ParseElement(code)
		if !ok {
			return Options{}, fmt.Errorf("unsupported GHCN-D element %q", code)
		}
		elements = append(elements, e)
	}
	return Options{
		StartYear:          cfg.StartYear,
		EndYear:            cfg.EndYear,
		Elements:           elements,
		StationPrefixes:    cfg.StationPrefixes,
		AverageWindowDays:  cfg.AverageWindowDays,
		FirePointsPath:     cfg.FirePointsPath,
		FirePerimetersPath: cfg.FirePerimetersPath,
		PredictionsPath:    cfg.PredictionsPath,
	}, nil
}

// Years returns every year from StartYear to EndYear inclusive.
func (o Options) Years() []int {
	var years []int
	for y := o.StartYear; y <= o.EndYear; y++ {
		years = append(years, y)
	}
	return years
}

// Pipeline runs the batch stages against one datalake.
type Pipeline struct {
	opts       Options
	lake       *lake.Lake
	downloader Downloader
	grid       *hexgrid.Grid
	publisher  Publisher
	clock      clockwork.Clock
	metrics    *observability.Metrics
	logger     *slog.Logger
	runID      string
	completed  atomic.Bool
}

// New creates a Pipeline. publisher may be nil, which disables the publish
// stage. Every log line carries the run ID.
func New(opts Options, l *lake.Lake, d Downloader, grid *hexgrid.Grid, publisher Publisher, metrics *observability.Metrics, logger *slog.Logger) *Pipeline {
	if opts.PublishBatchSize <= 0 {
		opts.PublishBatchSize = 500
	}
	runID := uuid.NewString()
	return &Pipeline{
		opts:       opts,
		lake:       l,
		downloader: d,
		grid:       grid,
		publisher:  publisher,
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger.With("run_id", runID),
		runID:      runID,
	}
}

// WithClock swaps the clock used for stage timing.
func (p *Pipeline) WithClock(c clockwork.Clock) *Pipeline {
	p.clock = c
	return p
}

// RunID identifies this pipeline run in logs.
func (p *Pipeline) RunID() string { return p.runID }

// CheckReadiness returns nil once a stage has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.completed.Load() {
		return errors.New("pipeline has not completed a stage yet")
	}
	return nil
}

// Run executes one stage, or every stage in order for StageAll. The publish
// stage is part of StageAll only when a publisher is configured.
func (p *Pipeline) Run(ctx context.Context, stage string) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	if stage != StageAll {
		return p.runStage(ctx, stage)
	}
	for _, s := range Stages {
		if s == StageAll || (s == StagePublish && p.publisher == nil) {
			continue
		}
		if err := p.runStage(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) runStage(ctx context.Context, stage string) error {
	var fn func(context.Context) error
	switch stage {
	case StageInit:
		fn = func(context.Context) error { return p.lake.Init(p.logger) }
	case StageDownload:
		fn = p.download
	case StageClean:
		fn = p.clean
	case StageHexes:
		fn = p.buildHexes
	case StageExport:
		fn = p.exportAll
	case StagePublish:
		fn = p.publish
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	p.logger.Info("stage started", "stage", stage, "start_year", p.opts.StartYear, "end_year", p.opts.EndYear)
	start := p.clock.Now()
	err := fn(ctx)
	elapsed := p.clock.Since(start)
	p.metrics.StageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
	if err != nil {
		p.logger.Error("stage failed", "stage", stage, "error", err, "duration", elapsed)
		return fmt.Errorf("stage %s: %w", stage, err)
	}
	p.completed.Store(true)
	p.logger.Info("stage finished", "stage", stage, "duration", elapsed)
	return nil
}
