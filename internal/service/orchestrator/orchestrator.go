// Package orchestrator drives a generation run: for every sub-topic it
// researches, synthesizes slide content and optionally an image, then
// assembles and persists the deck. Upstream failures degrade individual
// slides instead of aborting the run; only assembly and persistence
// failures are fatal.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/germanilia/presentation-maker/internal/infra/limiter"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/internal/service/content"
	"github.com/germanilia/presentation-maker/internal/service/deck"
	"github.com/germanilia/presentation-maker/internal/service/imagegen"
	"github.com/germanilia/presentation-maker/internal/service/research"
	"github.com/germanilia/presentation-maker/internal/service/theme"
	"github.com/germanilia/presentation-maker/pkg/errors"
	"github.com/germanilia/presentation-maker/pkg/util"
)

// Brief is the declarative input of a run. OutputPath overrides the store's
// default output directory when set.
type Brief struct {
	Topic        string
	SubTopics    []string
	Instructions string
	Source       research.Source
	Theme        theme.Theme
	Logo         []byte
	OutputPath   string
}

// Validate normalizes the brief and rejects briefs no run can be built from.
func (b *Brief) Validate() error {
	b.Topic = strings.TrimSpace(b.Topic)
	if b.Topic == "" {
		return errors.New(errors.ErrCodeInvalidReq, "topic is required")
	}

	// An empty sub-topic sequence is valid and yields a topic-only deck.
	subs := b.SubTopics[:0]
	for _, s := range b.SubTopics {
		if s = strings.TrimSpace(s); s != "" {
			subs = append(subs, s)
		}
	}
	b.SubTopics = subs

	if b.Source == "" {
		b.Source = research.SourceWeb
	}
	return nil
}

// State is the coarse progress of a run.
type State string

const (
	StatePending      State = "pending"
	StateResearching  State = "researching"
	StateSynthesizing State = "synthesizing"
	StateImaging      State = "imaging"
	StateAssembling   State = "assembling"
	StateDone         State = "done"
	StateFailed       State = "failed"
)

// Result is the outcome of a run. Diagnostics lists every degradation that
// happened along the way, in sub-topic order.
type Result struct {
	State        State
	ArtifactPath string
	Diagnostics  []string
}

// ResearchProvider fetches scored sources for a sub-topic.
type ResearchProvider interface {
	Name() string
	Fetch(ctx context.Context, subTopic string, maxResults int) (research.Result, error)
}

// ContentSynthesizer turns a sub-topic plus its research into slide content.
type ContentSynthesizer interface {
	Synthesize(ctx context.Context, subTopic, instructions string, res research.Result) (content.SlideContent, error)
}

// ImageSynthesizer produces an illustration for a slide.
type ImageSynthesizer interface {
	Synthesize(ctx context.Context, subTopic, title string) (*imagegen.Asset, error)
}

// ArtifactStore persists the rendered deck. An empty dir means the store's
// default output directory.
type ArtifactStore interface {
	SaveArtifact(dir string, render func(io.Writer) error) (string, error)
}

// Options tunes retries, timeouts and the image budget.
type Options struct {
	MaxResults       int
	ImageBudget      int
	TransientRetries int
	RateLimitRetries int
	BackoffInitial   time.Duration
	RateLimitBackoff time.Duration
	CallTimeout      time.Duration
}

func (o *Options) applyDefaults() {
	if o.MaxResults <= 0 {
		o.MaxResults = 5
	}
	if o.TransientRetries <= 0 {
		o.TransientRetries = 3
	}
	if o.RateLimitRetries <= 0 {
		o.RateLimitRetries = 2
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = 500 * time.Millisecond
	}
	if o.RateLimitBackoff <= 0 {
		o.RateLimitBackoff = 2 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 60 * time.Second
	}
}

// Orchestrator wires the pipeline stages together. All dependencies are
// interfaces so runs can be tested without live providers.
type Orchestrator struct {
	providers map[research.Source]ResearchProvider
	content   ContentSynthesizer
	images    ImageSynthesizer
	store     ArtifactStore
	limiter   *limiter.Limiter
	logger    *logger.Logger
	opts      Options
}

func New(
	providers map[research.Source]ResearchProvider,
	synth ContentSynthesizer,
	images ImageSynthesizer,
	store ArtifactStore,
	lim *limiter.Limiter,
	log *logger.Logger,
	opts Options,
) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{
		providers: providers,
		content:   synth,
		images:    images,
		store:     store,
		limiter:   lim,
		logger:    log,
		opts:      opts,
	}
}

// slot holds one sub-topic chain's output. Collecting by index keeps slide
// order deterministic no matter how the chains interleave.
type slot struct {
	content content.SlideContent
	image   *imagegen.Asset
	diags   []string
}

// Run executes the full pipeline for the brief. The returned Result carries
// the artifact path on success; on failure the artifact at the published
// path, if any, is the one from the previous successful run.
func (o *Orchestrator) Run(ctx context.Context, brief Brief) (*Result, error) {
	if err := brief.Validate(); err != nil {
		return nil, err
	}

	provider, ok := o.providers[brief.Source]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeInvalidReq, "no research provider for source %q", brief.Source)
	}

	log := o.logger.With("run_id", util.RandomString(8), "topic", brief.Topic, "source", provider.Name())
	log.Info("run started", "state", StateResearching, "sub_topics", len(brief.SubTopics))

	slots := make([]slot, len(brief.SubTopics))
	var wg sync.WaitGroup
	for i, subTopic := range brief.SubTopics {
		wg.Add(1)
		go func(i int, subTopic string) {
			defer wg.Done()
			slots[i] = o.runChain(ctx, provider, brief, i, subTopic)
		}(i, subTopic)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		log.Warn("run canceled", "state", StateFailed)
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "run canceled")
	}

	contents := make([]content.SlideContent, len(slots))
	images := make([]*imagegen.Asset, len(slots))
	var diags []string
	for i, s := range slots {
		contents[i] = s.content
		images[i] = s.image
		diags = append(diags, s.diags...)
	}

	cover, coverDiag := o.coverImage(ctx, brief.Topic)
	if coverDiag != "" {
		diags = append(diags, coverDiag)
	}

	log.Info("assembling deck", "state", StateAssembling, "diagnostics", len(diags))

	d, err := deck.Assemble(brief.Topic, contents, images, cover, brief.Theme, brief.Logo)
	if err != nil {
		log.Error("assembly failed", "error", err)
		return &Result{State: StateFailed, Diagnostics: diags}, err
	}

	path, err := o.store.SaveArtifact(brief.OutputPath, d.WritePPTX)
	if err != nil {
		log.Error("artifact save failed", "error", err)
		return &Result{State: StateFailed, Diagnostics: diags}, err
	}

	log.Info("run finished", "state", StateDone, "artifact", path)
	return &Result{State: StateDone, ArtifactPath: path, Diagnostics: diags}, nil
}

// coverImage generates the cover slide's illustration. It shares the slide
// images' retry policy and degradation contract: any exhaustion yields a
// diagnostic and a text-only cover, never a failed run. Disabled when the
// image budget is zero.
func (o *Orchestrator) coverImage(ctx context.Context, topic string) (*imagegen.Asset, string) {
	if o.opts.ImageBudget <= 0 {
		return nil, ""
	}

	var cover *imagegen.Asset
	err := o.callWithRetry(ctx, func(callCtx context.Context) error {
		asset, ierr := o.images.Synthesize(callCtx, topic, topic)
		if ierr == nil {
			cover = asset
		}
		return ierr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ""
		}
		o.logger.Warn("cover image generation failed", "topic", topic, "error", err)
		return nil, fmt.Sprintf("cover image generation failed: %v", err)
	}
	if cover != nil && !deck.EmbeddableImage(cover.Bytes) {
		return nil, fmt.Sprintf("cover image has unsupported format %s, cover renders text-only", imagegen.DetectMimeType(cover.Bytes))
	}
	return cover, ""
}

// runChain executes research, synthesis and imaging for one sub-topic.
// Every stage degrades on exhaustion; the chain always produces a slot.
func (o *Orchestrator) runChain(ctx context.Context, provider ResearchProvider, brief Brief, index int, subTopic string) slot {
	var s slot
	s.content = content.TitleOnly(subTopic)

	release, err := o.limiter.Acquire(ctx)
	if err != nil {
		s.diags = append(s.diags, fmt.Sprintf("%s: chain aborted: %v", subTopic, err))
		return s
	}
	defer release()

	log := o.logger.With("sub_topic", subTopic)

	res := research.Result{SubTopic: subTopic}
	err = o.callWithRetry(ctx, func(callCtx context.Context) error {
		r, ferr := provider.Fetch(callCtx, subTopic, o.opts.MaxResults)
		if ferr == nil {
			res = r
		}
		return ferr
	})
	if err != nil {
		if ctx.Err() != nil {
			return s
		}
		log.Warn("research exhausted, continuing without sources", "error", err)
		s.diags = append(s.diags, fmt.Sprintf("%s: research failed: %v", subTopic, err))
		res = research.Result{SubTopic: subTopic}
	}

	log.Debug("synthesizing content", "state", StateSynthesizing, "hits", len(res.Hits))

	err = o.callWithRetry(ctx, func(callCtx context.Context) error {
		sc, serr := o.content.Synthesize(callCtx, subTopic, brief.Instructions, res)
		if serr == nil {
			s.content = sc
		}
		return serr
	})
	if err != nil {
		if ctx.Err() != nil {
			return s
		}
		log.Warn("synthesis exhausted, degrading to title-only slide", "error", err)
		s.diags = append(s.diags, fmt.Sprintf("%s: synthesis failed: %v", subTopic, err))
		s.content = content.TitleOnly(subTopic)
	}

	if index >= o.opts.ImageBudget {
		s.diags = append(s.diags, fmt.Sprintf("%s: image skipped, budget exhausted", subTopic))
		return s
	}

	log.Debug("generating image", "state", StateImaging)

	err = o.callWithRetry(ctx, func(callCtx context.Context) error {
		asset, ierr := o.images.Synthesize(callCtx, subTopic, s.content.Title)
		if ierr == nil {
			s.image = asset
		}
		return ierr
	})
	if err != nil && ctx.Err() == nil {
		log.Warn("image generation failed, slide renders text-only", "error", err)
		s.diags = append(s.diags, fmt.Sprintf("%s: image generation failed: %v", subTopic, err))
		s.image = nil
	}

	if s.image != nil && !deck.EmbeddableImage(s.image.Bytes) {
		log.Warn("generated image has unsupported format, slide renders text-only", "mime", imagegen.DetectMimeType(s.image.Bytes))
		s.diags = append(s.diags, fmt.Sprintf("%s: generated image has unsupported format %s, slide renders text-only", subTopic, imagegen.DetectMimeType(s.image.Bytes)))
		s.image = nil
	}

	return s
}

// callWithRetry applies the retry policy around one stage call. Transient
// provider faults and upstream synthesis faults retry with exponential
// backoff, rate limiting retries on a slower fixed schedule, auth faults
// and shape faults never retry. Every attempt gets its own timeout.
func (o *Orchestrator) callWithRetry(ctx context.Context, fn func(context.Context) error) error {
	transient := backoff.NewExponentialBackOff()
	transient.InitialInterval = o.opts.BackoffInitial
	transient.MaxElapsedTime = 0

	transientLeft := o.opts.TransientRetries
	rateLeft := o.opts.RateLimitRetries

	for {
		callCtx, cancel := context.WithTimeout(ctx, o.opts.CallTimeout)
		err := fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var wait time.Duration
		switch errors.CodeOf(err) {
		case errors.ErrCodeProviderRateLimited:
			rateLeft--
			if rateLeft <= 0 {
				return err
			}
			wait = o.opts.RateLimitBackoff
		case errors.ErrCodeProviderTransient, errors.ErrCodeSynthesisUpstream:
			transientLeft--
			if transientLeft <= 0 {
				return err
			}
			wait = transient.NextBackOff()
		default:
			// Auth faults, shape faults and anything unclassified are not
			// retryable at this level.
			return err
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
