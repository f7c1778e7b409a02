package studio

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"star-art-studio/internal/blueprint"
	"star-art-studio/internal/generator"
)

var (
	ErrBusy             = errors.New("a generation is already running")
	ErrEmptyDescription = errors.New("description is empty")
)

type BlueprintGenerator interface {
	GenerateBlueprint(ctx context.Context, description string, opts generator.Options) (blueprint.Blueprint, error)
}

type ImageGenerator interface {
	GenerateImages(ctx context.Context, prompt string, ratio blueprint.AspectRatio) ([]generator.Image, error)
}

type Options struct {
	Blueprints BlueprintGenerator
	Images     ImageGenerator
	Logger     *slog.Logger
	// RunTimeout bounds one whole run; zero leaves it to the caller's context.
	RunTimeout time.Duration
}

// Snapshot is an immutable view of the session. Image bytes are shared
// between snapshots and must not be modified.
type Snapshot struct {
	RunID       string
	Phase       Phase
	Description string
	Options     generator.Options
	Blueprint   *blueprint.Blueprint
	Images      []generator.Image
	Error       string
	StartedAt   time.Time
	UpdatedAt   time.Time
}

func (s Snapshot) clone() Snapshot {
	out := s
	if s.Blueprint != nil {
		bp := s.Blueprint.Clone()
		out.Blueprint = &bp
	}
	if s.Images != nil {
		out.Images = make([]generator.Image, len(s.Images))
		copy(out.Images, s.Images)
	}
	return out
}

// Orchestrator runs blueprint generation then image generation for one
// session. It owns the session state; a submission while a run is in flight
// is rejected, never queued.
type Orchestrator struct {
	blueprints BlueprintGenerator
	images     ImageGenerator
	logger     *slog.Logger
	runTimeout time.Duration

	mu      sync.Mutex
	state   Snapshot
	subs    map[int]chan Snapshot
	nextSub int
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Orchestrator{
		blueprints: opts.Blueprints,
		images:     opts.Images,
		logger:     logger,
		runTimeout: opts.RunTimeout,
		state:      Snapshot{Phase: PhaseIdle, UpdatedAt: time.Now()},
		subs:       make(map[int]chan Snapshot),
	}
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

func (o *Orchestrator) Loading() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Phase.Loading()
}

// Subscribe delivers every state change in order. When the buffer is full the
// oldest pending snapshot is dropped so the newest one always arrives.
func (o *Orchestrator) Subscribe(buffer int) (<-chan Snapshot, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Snapshot, buffer)

	o.mu.Lock()
	id := o.nextSub
	o.nextSub++
	o.subs[id] = ch
	o.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			delete(o.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

// Run executes a full generation in the caller's goroutine and returns the
// stage error, if any. The outcome is also recorded in the session state.
func (o *Orchestrator) Run(ctx context.Context, description string, opts generator.Options) error {
	runID, err := o.begin(description, opts)
	if err != nil {
		return err
	}
	return o.execute(ctx, runID, description, opts)
}

// Start validates and enters BuildingBlueprint synchronously, then runs the
// stages in the background.
func (o *Orchestrator) Start(ctx context.Context, description string, opts generator.Options) error {
	runID, err := o.begin(description, opts)
	if err != nil {
		return err
	}
	go func() {
		_ = o.execute(ctx, runID, description, opts)
	}()
	return nil
}

func (o *Orchestrator) begin(description string, opts generator.Options) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", ErrEmptyDescription
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.state.Phase.Loading() {
		return "", ErrBusy
	}

	now := time.Now()
	o.state = Snapshot{
		RunID:       uuid.NewString(),
		Phase:       PhaseBuildingBlueprint,
		Description: description,
		Options:     opts,
		StartedAt:   now,
		UpdatedAt:   now,
	}
	o.publishLocked()
	return o.state.RunID, nil
}

func (o *Orchestrator) execute(ctx context.Context, runID, description string, opts generator.Options) error {
	if o.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.runTimeout)
		defer cancel()
	}

	logger := o.logger.With("run_id", runID)
	start := time.Now()
	logger.Info("blueprint stage started")

	bp, err := o.blueprints.GenerateBlueprint(ctx, description, opts)
	if err != nil {
		o.fail(logger, err)
		return err
	}

	o.mu.Lock()
	stored := bp.Clone()
	o.state.Blueprint = &stored
	o.state.Phase = PhaseBuildingImages
	o.state.UpdatedAt = time.Now()
	o.publishLocked()
	o.mu.Unlock()

	logger.Info("image stage started", "aspect_ratio", string(bp.Rendering.AspectRatio))

	images, err := o.images.GenerateImages(ctx, bp.FinalPrompt, bp.Rendering.AspectRatio)
	if err != nil {
		o.fail(logger, err)
		return err
	}

	o.mu.Lock()
	o.state.Images = images
	o.state.Phase = PhaseDone
	o.state.UpdatedAt = time.Now()
	o.publishLocked()
	o.mu.Unlock()

	logger.Info("generation done", "images", len(images), "dur_ms", time.Since(start).Milliseconds())
	return nil
}

// fail keeps whatever the earlier stage produced.
func (o *Orchestrator) fail(logger *slog.Logger, err error) {
	msg := err.Error()
	if msg == "" {
		msg = "An unknown error occurred."
	}

	o.mu.Lock()
	from := o.state.Phase
	o.state.Error = msg
	o.state.Phase = PhaseFailed
	o.state.UpdatedAt = time.Now()
	o.publishLocked()
	o.mu.Unlock()

	logger.Warn("generation failed", "phase", from.String(), "err", err)
}

func (o *Orchestrator) publishLocked() {
	for _, ch := range o.subs {
		snap := o.state.clone()
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
