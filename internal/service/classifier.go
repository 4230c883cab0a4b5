package service

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/timmy/grievo/internal/domain"
	"github.com/timmy/grievo/internal/errs"
	"github.com/timmy/grievo/internal/logger"
)

// DefaultSeeds are the built-in categories in declaration order.
// Ties between categories resolve to the earlier entry.
var DefaultSeeds = []domain.CategorySeed{
	{Category: "Healthcare", Phrase: "doctor hospital emergency patient ambulance medicine"},
	{Category: "Education", Phrase: "school teacher classroom student exam building bench"},
	{Category: "Water", Phrase: "water supply leakage tank drinking water"},
	{Category: "Electricity", Phrase: "power cut transformer electricity short circuit"},
	{Category: "Roads", Phrase: "road pothole accident bridge repair"},
	{Category: "Sanitation", Phrase: "garbage waste drainage toilet cleaning"},
}

// Embedder is the subset of EmbeddingService the classifier and lifecycle need.
type Embedder interface {
	Initialize(ctx context.Context) error
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	ModelVersion() string
	// Dimensions is the live vector length once Initialize has succeeded.
	Dimensions() int
}

// SeedStore persists seed vectors across restarts, keyed by model version.
type SeedStore interface {
	// Load returns a vector per category. ok is false when any seed is missing.
	Load(ctx context.Context, model string, seeds []domain.CategorySeed) (vectors map[string][]float32, ok bool, err error)
	Save(ctx context.Context, model string, seeds []domain.CategorySeed, vectors map[string][]float32) error
}

// Classification is the outcome of scoring a vector against every seed.
type Classification struct {
	Category  string
	Score     float64
	Breakdown domain.SimilarityBreakdown
}

type seedVector struct {
	category string
	vector   []float32
}

// Classifier scores vectors against precomputed seed embeddings.
// The seed table is published once and never mutated afterward.
type Classifier struct {
	embedder Embedder
	store    SeedStore
	seeds    []domain.CategorySeed

	table atomic.Pointer[[]seedVector]
}

// NewClassifier creates a classifier. A nil store disables seed persistence;
// nil seeds selects DefaultSeeds.
func NewClassifier(embedder Embedder, store SeedStore, seeds []domain.CategorySeed) *Classifier {
	if seeds == nil {
		seeds = DefaultSeeds
	}
	return &Classifier{embedder: embedder, store: store, seeds: seeds}
}

// Ready reports whether seeds have been initialized.
func (c *Classifier) Ready() bool {
	return c.table.Load() != nil
}

// Categories returns the seed category names in declaration order.
func (c *Classifier) Categories() []string {
	names := make([]string, len(c.seeds))
	for i, s := range c.seeds {
		names[i] = s.Category
	}
	return names
}

// InitializeSeeds embeds every exemplar phrase and publishes the seed table.
// Calling it again after success is a no-op.
func (c *Classifier) InitializeSeeds(ctx context.Context) error {
	if c.Ready() {
		return nil
	}
	ctx = logger.SetComponent(ctx, "classifier")
	start := time.Now()
	if err := c.embedder.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize embedding model: %w", err)
	}
	model := c.embedder.ModelVersion()

	vectors, source := c.loadStored(ctx, model, c.embedder.Dimensions())
	if vectors == nil {
		phrases := make([]string, len(c.seeds))
		for i, s := range c.seeds {
			phrases[i] = s.Phrase
		}
		embedded, err := c.embedder.EmbedBatch(ctx, phrases)
		if err != nil {
			return fmt.Errorf("failed to embed category seeds: %w", err)
		}
		vectors = make(map[string][]float32, len(c.seeds))
		for i, s := range c.seeds {
			vectors[s.Category] = embedded[i]
		}
		source = "model"

		if c.store != nil {
			if err := c.store.Save(ctx, model, c.seeds, vectors); err != nil {
				logger.CtxWarn(ctx, "Failed to persist seed vectors: %v", err)
			}
		}
	}

	table := make([]seedVector, len(c.seeds))
	for i, s := range c.seeds {
		table[i] = seedVector{category: s.Category, vector: vectors[s.Category]}
	}
	c.table.CompareAndSwap(nil, &table)

	logger.With(logger.Fields{
		"source": source,
		"model":  model,
	}).WithCount(len(table)).WithDuration(start).Info(ctx, "Category seeds initialized")
	return nil
}

func (c *Classifier) loadStored(ctx context.Context, model string, dim int) (map[string][]float32, string) {
	if c.store == nil {
		return nil, ""
	}
	vectors, ok, err := c.store.Load(ctx, model, c.seeds)
	if err != nil {
		logger.CtxWarn(ctx, "Seed store unavailable, computing seeds: %v", err)
		return nil, ""
	}
	if !ok {
		return nil, ""
	}
	for _, s := range c.seeds {
		if got := len(vectors[s.Category]); got != dim {
			logger.CtxWarn(ctx, "Stored seed %s has %d dimensions, model has %d; recomputing seeds", s.Category, got, dim)
			return nil, ""
		}
	}
	return vectors, "store"
}

// SeedBackoff bounds the wait between seeding attempts.
type SeedBackoff struct {
	Initial time.Duration
	Max     time.Duration
}

// KeepSeeding calls InitializeSeeds until it succeeds, doubling the wait after
// each failure up to backoff.Max. It returns ctx.Err() if ctx ends first.
func (c *Classifier) KeepSeeding(ctx context.Context, backoff SeedBackoff) error {
	if backoff.Initial <= 0 {
		backoff.Initial = time.Second
	}
	if backoff.Max < backoff.Initial {
		backoff.Max = backoff.Initial
	}

	wait := backoff.Initial
	for attempt := 1; ; attempt++ {
		err := c.InitializeSeeds(ctx)
		if err == nil {
			return nil
		}
		logger.FromContext(ctx).WithError(err).WithFields(logger.Fields{
			"attempt":  attempt,
			"retry_in": wait.String(),
		}).Warn("Category seeding failed; classification unavailable")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
		if wait > backoff.Max {
			wait = backoff.Max
		}
	}
}

// Classify scores vector against every seed in declaration order.
// Best starts at General/-1 and moves only on a strictly greater similarity.
func (c *Classifier) Classify(vector []float32) (*Classification, error) {
	table := c.table.Load()
	if table == nil {
		return nil, errs.ErrNotInitialized
	}

	result := &Classification{
		Category:  domain.CategoryGeneral,
		Score:     -1,
		Breakdown: make(domain.SimilarityBreakdown, 0, len(*table)),
	}
	for _, seed := range *table {
		if len(vector) != len(seed.vector) {
			return nil, errs.Newf(errs.KindEmbedding, "vector has %d dimensions, %s seed has %d", len(vector), seed.category, len(seed.vector))
		}
		sim := CosineSimilarity(vector, seed.vector)
		result.Breakdown = append(result.Breakdown, domain.CategoryScore{Category: seed.category, Score: round3(sim)})
		if sim > result.Score {
			result.Score = sim
			result.Category = seed.category
		}
	}
	return result, nil
}
