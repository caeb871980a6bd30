// Package pipeline runs an inspection: describe the before image, check each
// after image against the task list, synthesize one verdict, and assemble the
// report.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alantheprice/yardcheck/pkg/configuration"
	"github.com/alantheprice/yardcheck/pkg/events"
	"github.com/alantheprice/yardcheck/pkg/imageref"
	api "github.com/alantheprice/yardcheck/pkg/model_api"
	"github.com/alantheprice/yardcheck/pkg/prompts"
	"github.com/alantheprice/yardcheck/pkg/report"
	"github.com/alantheprice/yardcheck/pkg/taskstatus"
	"github.com/alantheprice/yardcheck/pkg/utils"
)

// Options wires a Pipeline. Gateway and both models are required.
type Options struct {
	Gateway           api.Gateway
	VisionModel       api.Model
	TextModel         api.Model
	Stages            configuration.StageSettings
	MaxParallelImages int
	Events            *events.EventBus
	Logger            *utils.Logger
	Now               func() time.Time
}

// Pipeline is safe for concurrent use; each Run keeps its state local.
type Pipeline struct {
	gateway     api.Gateway
	vision      api.Model
	text        api.Model
	stages      configuration.StageSettings
	parallelism int
	events      *events.EventBus
	logger      *utils.Logger
	now         func() time.Time
}

// New builds a pipeline from explicit options.
func New(opts Options) *Pipeline {
	p := &Pipeline{
		gateway:     opts.Gateway,
		vision:      opts.VisionModel,
		text:        opts.TextModel,
		stages:      opts.Stages,
		parallelism: opts.MaxParallelImages,
		events:      opts.Events,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if p.parallelism < 1 {
		p.parallelism = 1
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// NewFromConfig builds a pipeline using the configured models and stage settings.
func NewFromConfig(cfg *configuration.Config, gateway api.Gateway, bus *events.EventBus, logger *utils.Logger) *Pipeline {
	return New(Options{
		Gateway:           gateway,
		VisionModel:       api.VisionModel(cfg),
		TextModel:         api.TextModel(cfg),
		Stages:            cfg.Stages,
		MaxParallelImages: cfg.MaxParallelImages,
		Events:            bus,
		Logger:            logger,
	})
}

// Request is one inspection.
type Request struct {
	// RunID tags events and logs; generated when empty.
	RunID           string
	Before          *imageref.ImageRef
	After           []*imageref.ImageRef
	Tasks           string
	ContractorNotes string
	// Final renders the final verification report instead of the project report.
	Final         bool
	SelectedTasks []string
}

// AnalysisContext is everything the model produced during one run.
type AnalysisContext struct {
	BeforeAnalysis  string
	Tasks           string
	ContractorNotes string
	AfterAnalyses   []string
	Verification    string
}

// Result is the outcome of a run.
type Result struct {
	RunID   string
	Context AnalysisContext
	Report  report.Report
	// Verified is false when no after image was submitted and the pending
	// report was produced instead.
	Verified   bool
	Incomplete []string
	Tasks      []taskstatus.Task
}

func (r Request) validate() error {
	if r.Before == nil {
		return &api.ValidationError{Field: "before_image", Reason: "a before image is required"}
	}
	if strings.TrimSpace(r.Tasks) == "" {
		return &api.ValidationError{Field: "requested_tasks", Reason: "at least one requested task is required"}
	}
	if r.Final && len(r.After) == 0 {
		return &api.ValidationError{Field: "after_images", Reason: "the final report needs at least one after image"}
	}
	for i, img := range r.After {
		if img == nil {
			return &api.ValidationError{Field: "after_images", Reason: fmt.Sprintf("after image %d is empty", i+1)}
		}
	}
	return nil
}

// Run executes the stages in order. Any stage failure aborts the run with a
// *StageError; no stage output is ever replaced by placeholder text.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger.WithCorrelationID(runID)
	start := time.Now()

	p.events.Publish(events.EventTypeAnalysisStarted, events.AnalysisStartedEvent(runID, len(req.After)))
	logger.Logf("Pipeline: run started with %d after image(s)", len(req.After))

	actx := AnalysisContext{Tasks: req.Tasks, ContractorNotes: req.ContractorNotes}

	before, err := p.stage(ctx, runID, StageBefore, -1, api.Request{
		Model:       p.vision,
		Messages:    prompts.Before(req.Before),
		MaxTokens:   p.stages.Before.MaxTokens,
		Temperature: p.stages.Before.Temperature,
	})
	if err != nil {
		return nil, err
	}
	actx.BeforeAnalysis = before

	if len(req.After) == 0 {
		rep := report.Pending(p.now(), actx.BeforeAnalysis, actx.Tasks)
		p.events.Publish(events.EventTypeAnalysisCompleted, events.AnalysisCompletedEvent(runID, 0, time.Since(start)))
		logger.Log("Pipeline: no after images, produced pending report")
		return &Result{RunID: runID, Context: actx, Report: rep}, nil
	}

	analyses, err := p.analyzeAfterImages(ctx, runID, req, actx.BeforeAnalysis)
	if err != nil {
		return nil, err
	}
	actx.AfterAnalyses = analyses

	verification, err := p.stage(ctx, runID, StageSynthesis, -1, api.Request{
		Model: p.text,
		Messages: prompts.Synthesis(prompts.SynthesisInput{
			BeforeAnalysis:  actx.BeforeAnalysis,
			Tasks:           actx.Tasks,
			ContractorNotes: actx.ContractorNotes,
			AfterAnalyses:   actx.AfterAnalyses,
		}),
		MaxTokens:   p.stages.Synthesis.MaxTokens,
		Temperature: p.stages.Synthesis.Temperature,
	})
	if err != nil {
		return nil, err
	}
	actx.Verification = verification

	tasks := taskstatus.Parse(verification)
	incomplete := taskstatus.ExtractIncomplete(verification)

	input := report.Input{
		GeneratedAt:     p.now(),
		BeforeAnalysis:  actx.BeforeAnalysis,
		AfterAnalyses:   actx.AfterAnalyses,
		Tasks:           actx.Tasks,
		ContractorNotes: actx.ContractorNotes,
		Verification:    actx.Verification,
		Incomplete:      incomplete,
	}
	var rep report.Report
	if req.Final {
		rep = report.Final(report.FinalInput{Input: input, SelectedTasks: req.SelectedTasks, Statuses: tasks})
	} else {
		rep = report.Assemble(input)
	}

	p.events.Publish(events.EventTypeAnalysisCompleted, events.AnalysisCompletedEvent(runID, len(incomplete), time.Since(start)))
	logger.Logf("Pipeline: run finished in %s, %d task(s) still open", time.Since(start).Round(time.Millisecond), len(incomplete))

	return &Result{
		RunID:      runID,
		Context:    actx,
		Report:     rep,
		Verified:   true,
		Incomplete: incomplete,
		Tasks:      tasks,
	}, nil
}

// analyzeAfterImages issues one vision call per after image, at most
// parallelism at a time. Results keep submission order.
func (p *Pipeline) analyzeAfterImages(ctx context.Context, runID string, req Request, beforeAnalysis string) ([]string, error) {
	analyses := make([]string, len(req.After))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.parallelism)
	for i, img := range req.After {
		g.Go(func() error {
			// A failed sibling cancels gctx; don't start new calls after that.
			if err := gctx.Err(); err != nil {
				return err
			}
			text, err := p.stage(gctx, runID, StageAfterImage, i, api.Request{
				Model: p.vision,
				Messages: prompts.Verification(prompts.VerificationInput{
					BeforeAnalysis:  beforeAnalysis,
					Tasks:           req.Tasks,
					ContractorNotes: req.ContractorNotes,
					Image:           img,
					Index:           i,
					Total:           len(req.After),
				}),
				MaxTokens:   p.stages.AfterImage.MaxTokens,
				Temperature: p.stages.AfterImage.Temperature,
			})
			if err != nil {
				return err
			}
			analyses[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return analyses, nil
}

// stage invokes the gateway for one stage, publishing progress and wrapping
// failures in a *StageError. imageIndex is -1 outside the per-image stage.
func (p *Pipeline) stage(ctx context.Context, runID string, stage Stage, imageIndex int, req api.Request) (string, error) {
	p.events.Publish(events.EventTypeStageStarted, events.StageStartedEvent(runID, string(stage), imageIndex))
	start := time.Now()

	text, err := p.gateway.Invoke(ctx, req)
	if err != nil {
		serr := &StageError{Stage: stage, ImageIndex: max(imageIndex, 0), Err: err}
		p.logger.WithCorrelationID(runID).Logf("Pipeline: %v (class=%s)", serr, api.Class(err))
		p.events.Publish(events.EventTypeStageFailed, events.StageFailedEvent(runID, string(stage), imageIndex, serr))
		return "", serr
	}

	p.events.Publish(events.EventTypeStageCompleted, events.StageCompletedEvent(runID, string(stage), imageIndex, time.Since(start), len(text)))
	return text, nil
}

// SuggestTasks asks the vision model for task ideas from the before image.
// It returns the raw bulleted text and the parsed task list.
func (p *Pipeline) SuggestTasks(ctx context.Context, before *imageref.ImageRef) (string, []string, error) {
	if before == nil {
		return "", nil, &api.ValidationError{Field: "before_image", Reason: "a before image is required"}
	}
	runID := uuid.NewString()
	text, err := p.stage(ctx, runID, StageSuggest, -1, api.Request{
		Model:       p.vision,
		Messages:    prompts.SuggestTasks(before),
		MaxTokens:   p.stages.Suggest.MaxTokens,
		Temperature: p.stages.Suggest.Temperature,
	})
	if err != nil {
		return "", nil, err
	}
	return text, prompts.ParseSuggestedTasks(text), nil
}

// Describe runs only the before stage. It backs the bid document, which needs
// no task verification.
func (p *Pipeline) Describe(ctx context.Context, before *imageref.ImageRef) (string, error) {
	if before == nil {
		return "", &api.ValidationError{Field: "before_image", Reason: "a before image is required"}
	}
	return p.stage(ctx, uuid.NewString(), StageBefore, -1, api.Request{
		Model:       p.vision,
		Messages:    prompts.Before(before),
		MaxTokens:   p.stages.Before.MaxTokens,
		Temperature: p.stages.Before.Temperature,
	})
}
