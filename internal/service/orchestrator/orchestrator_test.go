package orchestrator

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germanilia/presentation-maker/internal/infra/limiter"
	"github.com/germanilia/presentation-maker/internal/infra/logger"
	"github.com/germanilia/presentation-maker/internal/service/content"
	"github.com/germanilia/presentation-maker/internal/service/imagegen"
	"github.com/germanilia/presentation-maker/internal/service/research"
	"github.com/germanilia/presentation-maker/internal/service/theme"
	"github.com/germanilia/presentation-maker/pkg/errors"
)

var pngBytes = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00}

type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int
	fetch func(subTopic string, call int) (research.Result, error)
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Fetch(ctx context.Context, subTopic string, maxResults int) (research.Result, error) {
	if err := ctx.Err(); err != nil {
		return research.Result{}, err
	}
	p.mu.Lock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[subTopic]++
	call := p.calls[subTopic]
	p.mu.Unlock()
	if p.fetch != nil {
		return p.fetch(subTopic, call)
	}
	return research.Result{
		SubTopic: subTopic,
		Hits:     []research.Hit{{Title: "hit for " + subTopic, URL: "http://example.com", Score: 0.8}},
	}, nil
}

type fakeSynth struct {
	mu    sync.Mutex
	calls int
	run   func(subTopic string) (content.SlideContent, error)
}

func (s *fakeSynth) Synthesize(ctx context.Context, subTopic, instructions string, res research.Result) (content.SlideContent, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.run != nil {
		return s.run(subTopic)
	}
	return content.SlideContent{
		SubTopic: subTopic,
		Title:    "Title: " + subTopic,
		Bullets:  []string{"bullet"},
	}, nil
}

type fakeImages struct {
	mu    sync.Mutex
	calls []string
	run   func(subTopic string, call int) (*imagegen.Asset, error)
}

func (f *fakeImages) Synthesize(ctx context.Context, subTopic, title string) (*imagegen.Asset, error) {
	f.mu.Lock()
	f.calls = append(f.calls, subTopic)
	call := 0
	for _, c := range f.calls {
		if c == subTopic {
			call++
		}
	}
	f.mu.Unlock()
	if f.run != nil {
		return f.run(subTopic, call)
	}
	return &imagegen.Asset{SubTopic: subTopic, Bytes: pngBytes, MimeType: "image/png"}, nil
}

func (f *fakeImages) callsFor(subTopic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == subTopic {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu    sync.Mutex
	saves int
	dir   string
	fail  error
}

func (f *fakeStore) SaveArtifact(dir string, render func(io.Writer) error) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	if err := render(io.Discard); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.saves++
	f.dir = dir
	f.mu.Unlock()
	return "/tmp/presentation.pptx", nil
}

func fastOpts() Options {
	return Options{
		MaxResults:       3,
		ImageBudget:      10,
		TransientRetries: 3,
		RateLimitRetries: 2,
		BackoffInitial:   time.Millisecond,
		RateLimitBackoff: time.Millisecond,
		CallTimeout:      time.Second,
	}
}

func newTestOrchestrator(p ResearchProvider, s ContentSynthesizer, img ImageSynthesizer, store ArtifactStore, opts Options) *Orchestrator {
	providers := map[research.Source]ResearchProvider{research.SourceWeb: p}
	return New(providers, s, img, store, limiter.New(4, 1000), logger.NewNop(), opts)
}

func testBrief(subTopics ...string) Brief {
	return Brief{Topic: "Topic", SubTopics: subTopics, Source: research.SourceWeb, Theme: theme.Theme{}}
}

func TestRunProducesArtifactWithCleanInputs(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, &fakeImages{}, store, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a", "b", "c"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "/tmp/presentation.pptx", res.ArtifactPath)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 1, store.saves)
}

func TestRunImageBudgetFavorsEarlierSubTopics(t *testing.T) {
	images := &fakeImages{}
	opts := fastOpts()
	opts.ImageBudget = 2
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, images, &fakeStore{}, opts)

	res, err := o.Run(context.Background(), testBrief("a", "b", "c", "d"))
	require.NoError(t, err)
	require.Equal(t, StateDone, res.State)

	// The cover image sits outside the per-slide budget.
	assert.Len(t, images.calls, 3)
	assert.ElementsMatch(t, []string{"Topic", "a", "b"}, images.calls)
	require.Len(t, res.Diagnostics, 2)
	assert.Contains(t, res.Diagnostics[0], "c: image skipped")
	assert.Contains(t, res.Diagnostics[1], "d: image skipped")
}

func TestRunImageBudgetZeroSkipsImaging(t *testing.T) {
	images := &fakeImages{}
	opts := fastOpts()
	opts.ImageBudget = 0
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, images, &fakeStore{}, opts)

	res, err := o.Run(context.Background(), testBrief("a", "b"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, images.calls)
	require.Len(t, res.Diagnostics, 2)
	for _, d := range res.Diagnostics {
		assert.Contains(t, d, "image skipped")
	}
}

func TestRunResearchExhaustionDegradesNotAborts(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(subTopic string, call int) (research.Result, error) {
			if subTopic == "bad" {
				return research.Result{}, errors.New(errors.ErrCodeProviderTransient, "upstream down")
			}
			return research.Result{SubTopic: subTopic}, nil
		},
	}
	o := newTestOrchestrator(provider, &fakeSynth{}, &fakeImages{}, &fakeStore{}, fastOpts())

	res, err := o.Run(context.Background(), testBrief("good", "bad"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "bad")
	assert.Contains(t, res.Diagnostics[0], "research failed")
	assert.Equal(t, 3, provider.calls["bad"], "transient faults retry up to the attempt budget")
}

func TestRunTransientResearchRecoversOnRetry(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(subTopic string, call int) (research.Result, error) {
			if call == 1 {
				return research.Result{}, errors.New(errors.ErrCodeProviderTransient, "blip")
			}
			return research.Result{SubTopic: subTopic, Hits: []research.Hit{{Title: "t", URL: "u"}}}, nil
		},
	}
	o := newTestOrchestrator(provider, &fakeSynth{}, &fakeImages{}, &fakeStore{}, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a"))
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 2, provider.calls["a"])
}

func TestRunAuthFaultDoesNotRetry(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(subTopic string, call int) (research.Result, error) {
			return research.Result{}, errors.New(errors.ErrCodeProviderAuth, "bad key")
		},
	}
	o := newTestOrchestrator(provider, &fakeSynth{}, &fakeImages{}, &fakeStore{}, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, provider.calls["a"], "auth faults are permanent")
	require.Len(t, res.Diagnostics, 1)
}

func TestRunRateLimitedUsesSmallerBudget(t *testing.T) {
	provider := &fakeProvider{
		fetch: func(subTopic string, call int) (research.Result, error) {
			return research.Result{}, errors.New(errors.ErrCodeProviderRateLimited, "429")
		},
	}
	o := newTestOrchestrator(provider, &fakeSynth{}, &fakeImages{}, &fakeStore{}, fastOpts())

	_, err := o.Run(context.Background(), testBrief("a"))
	require.NoError(t, err)
	assert.Equal(t, 2, provider.calls["a"])
}

func TestRunSynthesisShapeFaultDegradesToTitleOnly(t *testing.T) {
	synth := &fakeSynth{
		run: func(subTopic string) (content.SlideContent, error) {
			return content.SlideContent{}, errors.New(errors.ErrCodeSynthesisShape, "model output failed shape validation twice")
		},
	}
	store := &fakeStore{}
	o := newTestOrchestrator(&fakeProvider{}, synth, &fakeImages{}, store, fastOpts())

	res, err := o.Run(context.Background(), testBrief("quantum"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, store.saves, "deck still published with the degraded slide")
	assert.Equal(t, 1, synth.calls, "shape faults are not retried by the run loop")
	require.Len(t, res.Diagnostics, 1)
	assert.Contains(t, res.Diagnostics[0], "synthesis failed")
}

func TestRunImageFailureStillDone(t *testing.T) {
	images := &fakeImages{
		run: func(subTopic string, call int) (*imagegen.Asset, error) {
			return nil, errors.New(errors.ErrCodeImageGen, "no image in response")
		},
	}
	store := &fakeStore{}
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, images, store, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, store.saves)
	require.Len(t, res.Diagnostics, 2)
	assert.Contains(t, res.Diagnostics[0], "a: image generation failed")
	assert.Contains(t, res.Diagnostics[1], "cover image generation failed")
	assert.Equal(t, 1, images.callsFor("a"), "an empty model response is not retried")
}

func TestRunImageTransientFaultRetries(t *testing.T) {
	images := &fakeImages{
		run: func(subTopic string, call int) (*imagegen.Asset, error) {
			if call == 1 {
				return nil, errors.New(errors.ErrCodeProviderTransient, "image generation request failed: context deadline exceeded")
			}
			return &imagegen.Asset{SubTopic: subTopic, Bytes: pngBytes, MimeType: "image/png"}, nil
		},
	}
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, images, &fakeStore{}, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Diagnostics, "a recovered image fault leaves no trace")
	assert.Equal(t, 2, images.callsFor("a"), "transient image faults get a second attempt")
}

func TestRunUnsupportedImageFormatDegrades(t *testing.T) {
	images := &fakeImages{
		run: func(subTopic string, call int) (*imagegen.Asset, error) {
			return &imagegen.Asset{SubTopic: subTopic, Bytes: []byte("garbage?"), MimeType: "image/bmp"}, nil
		},
	}
	store := &fakeStore{}
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, images, store, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 1, store.saves, "an undecodable image never fails the run")
	require.Len(t, res.Diagnostics, 2)
	assert.Contains(t, res.Diagnostics[0], "unsupported format")
	assert.Contains(t, res.Diagnostics[1], "cover image has unsupported format")
}

func TestRunWebpImageFlowsThrough(t *testing.T) {
	webp := []byte{0x52, 0x49, 0x46, 0x46, 0x00, 0x00, 0x00, 0x00, 0x57, 0x45, 0x42, 0x50}
	images := &fakeImages{
		run: func(subTopic string, call int) (*imagegen.Asset, error) {
			return &imagegen.Asset{SubTopic: subTopic, Bytes: webp, MimeType: "image/webp"}, nil
		},
	}
	store := &fakeStore{}
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, images, store, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a"))
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Diagnostics)
	assert.Equal(t, 1, store.saves, "webp assets embed like any other raster")
}

func TestRunStoreFailureIsFatal(t *testing.T) {
	store := &fakeStore{fail: errors.New(errors.ErrCodeStorage, "disk full")}
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, &fakeImages{}, store, fastOpts())

	res, err := o.Run(context.Background(), testBrief("a"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeStorage, errors.CodeOf(err))
	require.NotNil(t, res)
	assert.Equal(t, StateFailed, res.State)
}

func TestRunCancellationSavesNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &fakeProvider{
		fetch: func(subTopic string, call int) (research.Result, error) {
			cancel()
			return research.Result{}, context.Canceled
		},
	}
	store := &fakeStore{}
	o := newTestOrchestrator(provider, &fakeSynth{}, &fakeImages{}, store, fastOpts())

	_, err := o.Run(ctx, testBrief("a", "b"))
	require.Error(t, err)
	assert.Equal(t, 0, store.saves)
}

func TestRunPassesOutputPathToStore(t *testing.T) {
	store := &fakeStore{}
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, &fakeImages{}, store, fastOpts())

	b := testBrief("a")
	b.OutputPath = "/var/decks"
	_, err := o.Run(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, "/var/decks", store.dir)
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, &fakeImages{}, &fakeStore{}, fastOpts())

	_, err := o.Run(context.Background(), Brief{Topic: "", SubTopics: []string{"a"}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidReq, errors.CodeOf(err))
}

func TestRunEmptySubTopicsYieldsTopicOnlyDeck(t *testing.T) {
	provider := &fakeProvider{}
	images := &fakeImages{}
	store := &fakeStore{}
	o := newTestOrchestrator(provider, &fakeSynth{}, images, store, fastOpts())

	res, err := o.Run(context.Background(), Brief{Topic: "Solo", SubTopics: []string{"  ", ""}})
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Empty(t, res.Diagnostics)
	assert.Empty(t, provider.calls)
	assert.Equal(t, []string{"Solo"}, images.calls, "only the cover image is generated")
	assert.Equal(t, 1, store.saves)
}

func TestRunUnknownSourceRejected(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{}, &fakeSynth{}, &fakeImages{}, &fakeStore{}, fastOpts())

	b := testBrief("a")
	b.Source = research.SourceVideo
	_, err := o.Run(context.Background(), b)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInvalidReq, errors.CodeOf(err))
}

func TestBriefValidateNormalizes(t *testing.T) {
	b := Brief{Topic: " t ", SubTopics: []string{" a ", "", "b"}}
	require.NoError(t, b.Validate())
	assert.Equal(t, "t", b.Topic)
	assert.Equal(t, []string{"a", "b"}, b.SubTopics)
	assert.Equal(t, research.SourceWeb, b.Source)
}

func TestRunManySubTopicsKeepOrder(t *testing.T) {
	var subs []string
	for i := 0; i < 12; i++ {
		subs = append(subs, fmt.Sprintf("sub-%02d", i))
	}
	synth := &fakeSynth{
		run: func(subTopic string) (content.SlideContent, error) {
			return content.SlideContent{SubTopic: subTopic, Title: subTopic, Bullets: []string{"x"}}, nil
		},
	}

	// The store renders the deck, so slide order is observable through a
	// capture of the render call's input instead; here order is asserted
	// indirectly through diagnostics, which are flattened by index.
	provider := &fakeProvider{
		fetch: func(subTopic string, call int) (research.Result, error) {
			return research.Result{}, errors.New(errors.ErrCodeProviderAuth, "down")
		},
	}
	opts := fastOpts()
	opts.ImageBudget = len(subs)
	o := newTestOrchestrator(provider, synth, &fakeImages{}, &fakeStore{}, opts)

	res, err := o.Run(context.Background(), testBrief(subs...))
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, len(subs))
	for i, d := range res.Diagnostics {
		assert.Contains(t, d, subs[i], "diagnostics must follow sub-topic order")
	}
}
