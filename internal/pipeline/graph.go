package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/amillerrr/video2music/internal/metrics"
	"github.com/amillerrr/video2music/pkg/models"
)

var tracer = otel.Tracer("video2music-pipeline")

// Graph wires the stages together:
//
//	frames -> {transcription, ambient, scene} -> mood -> music
//
// The middle step runs concurrently. Each stage in it gets a snapshot of the
// state after frame extraction, and results are merged only once every stage
// has succeeded.
type Graph struct {
	Frames   Stage
	Parallel []Stage
	Mood     Stage
	Music    Stage

	log *slog.Logger
	now func() time.Time
}

// NewGraph builds the default content-aware graph. rec may be nil, in which
// case every run uses the fallback library.
func NewGraph(rec Recommender, log *slog.Logger) *Graph {
	return &Graph{
		Frames:   FrameExtractor{},
		Parallel: []Stage{Transcriber{}, AmbientTagger{}, SceneAnalyzer{}},
		Mood:     MoodReasoner{},
		Music:    MusicQuerier{Catalog: rec, Logger: log},
		log:      log,
		now:      time.Now,
	}
}

// Run analyses one video and returns the result. Any stage failure fails the
// whole run.
func (g *Graph) Run(ctx context.Context, in Input) (*models.ProcessingResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "analysis-graph")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.id", in.RequestID),
		attribute.Int("music.year_start", in.YearStart),
		attribute.Int("music.year_end", in.YearEnd),
	)

	start := g.clock()
	state := &State{Input: in}

	if err := g.step(ctx, state, g.Frames); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := g.fanOut(ctx, state); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := g.step(ctx, state, g.Mood); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := g.step(ctx, state, g.Music); err != nil {
		span.RecordError(err)
		return nil, err
	}

	duration := math.Round(g.clock().Sub(start).Seconds()*1000) / 1000
	result := state.Result(duration)

	if g.log != nil {
		g.log.InfoContext(ctx, "Analysis completed",
			"requestId", in.RequestID,
			"mood", result.SceneMood,
			"recommendations", len(result.Recommendations),
			"durationSeconds", duration,
		)
	}
	return result, nil
}

func (g *Graph) step(ctx context.Context, state *State, stage Stage) error {
	if stage == nil {
		return nil
	}
	p, err := g.run(ctx, stage, state.Snapshot())
	if err != nil {
		return err
	}
	return state.Merge(p)
}

func (g *Graph) fanOut(ctx context.Context, state *State) error {
	snapshot := state.Snapshot()
	partials := make([]Partial, len(g.Parallel))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, stage := range g.Parallel {
		eg.Go(func() error {
			p, err := g.run(egCtx, stage, snapshot.Snapshot())
			if err != nil {
				return err
			}
			partials[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for _, p := range partials {
		if err := state.Merge(p); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) run(ctx context.Context, stage Stage, s State) (Partial, error) {
	name := stage.Name()
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	if err := ctx.Err(); err != nil {
		return Partial{}, fmt.Errorf("%w: before %s", models.ErrContextCanceled, name)
	}

	start := g.clock()
	p, err := stage.Run(ctx, s)
	metrics.StageDuration.WithLabelValues(name).Observe(g.clock().Sub(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return Partial{}, fmt.Errorf("%w: %s: %v", models.ErrAnalysisFailed, name, err)
	}
	return p, nil
}

func (g *Graph) clock() time.Time {
	if g.now == nil {
		return time.Now()
	}
	return g.now()
}
