package engine

import (
	"context"
	"math/rand"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GeneticConfig tunes the evolutionary search.
type GeneticConfig struct {
	Population       int     `json:"populationSize" yaml:"populationSize"`
	Generations      int     `json:"generations" yaml:"generations"`
	CrossoverRate    float64 `json:"crossoverRate" yaml:"crossoverRate"`
	MutationRate     float64 `json:"mutationRate" yaml:"mutationRate"`
	GeneMutationRate float64 `json:"geneMutationRate" yaml:"geneMutationRate"`
	TournamentSize   int     `json:"tournamentSize" yaml:"tournamentSize"`
}

// DefaultGeneticConfig returns population 50, 30 generations, crossover 0.8,
// mutation 0.2 per individual and 0.2 per gene, tournaments of 3.
func DefaultGeneticConfig() GeneticConfig {
	return GeneticConfig{
		Population:       50,
		Generations:      30,
		CrossoverRate:    0.8,
		MutationRate:     0.2,
		GeneMutationRate: 0.2,
		TournamentSize:   3,
	}
}

func (cfg GeneticConfig) withDefaults() GeneticConfig {
	def := DefaultGeneticConfig()
	if cfg.Population <= 0 {
		cfg.Population = def.Population
	}
	if cfg.Generations < 0 {
		cfg.Generations = def.Generations
	}
	if cfg.CrossoverRate <= 0 || cfg.CrossoverRate > 1 {
		cfg.CrossoverRate = def.CrossoverRate
	}
	if cfg.MutationRate <= 0 || cfg.MutationRate > 1 {
		cfg.MutationRate = def.MutationRate
	}
	if cfg.GeneMutationRate <= 0 || cfg.GeneMutationRate > 1 {
		cfg.GeneMutationRate = def.GeneMutationRate
	}
	if cfg.TournamentSize <= 0 {
		cfg.TournamentSize = def.TournamentSize
	}
	return cfg
}

type individual struct {
	genes []gene
	score FitnessScore
	stale bool
}

func (ind *individual) clone() *individual {
	return &individual{
		genes: append([]gene(nil), ind.genes...),
		score: ind.score,
		stale: ind.stale,
	}
}

// GeneticOptimizer evolves complete candidate schedules. The random source is
// only touched from the calling goroutine; evaluation fans out to workers.
type GeneticOptimizer struct {
	constraints *ConstraintEngine
	cfg         GeneticConfig
	rng         *rand.Rand
	workers     int
	logger      *zap.Logger
}

// NewGeneticOptimizer builds an optimizer. workers <= 0 uses one worker per CPU.
func NewGeneticOptimizer(constraints *ConstraintEngine, cfg GeneticConfig, rng *rand.Rand, workers int, logger *zap.Logger) *GeneticOptimizer {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeneticOptimizer{
		constraints: constraints,
		cfg:         cfg.withDefaults(),
		rng:         rng,
		workers:     workers,
		logger:      logger,
	}
}

// Optimize runs the fixed-length generational loop and returns the best
// individual's genes with its score.
func (o *GeneticOptimizer) Optimize(ctx context.Context) ([]gene, FitnessScore, error) {
	population := make([]*individual, o.cfg.Population)
	for i := range population {
		population[i] = &individual{genes: o.construct(), stale: true}
	}
	if err := o.evaluate(ctx, population); err != nil {
		return nil, FitnessScore{}, err
	}
	sortPopulation(population)

	for gen := 0; gen < o.cfg.Generations; gen++ {
		offspring := make([]*individual, 0, len(population))
		for len(offspring) < len(population) {
			a := o.tournament(population).clone()
			b := o.tournament(population).clone()
			if o.rng.Float64() < o.cfg.CrossoverRate {
				a.genes, b.genes = o.crossover(a.genes, b.genes)
				a.stale, b.stale = true, true
			}
			for _, child := range []*individual{a, b} {
				if o.rng.Float64() < o.cfg.MutationRate {
					child.genes = o.mutate(child.genes)
					child.stale = true
				}
				offspring = append(offspring, child)
			}
		}
		offspring = offspring[:len(population)]
		if err := o.evaluate(ctx, offspring); err != nil {
			return nil, FitnessScore{}, err
		}

		pool := append(population, offspring...)
		sortPopulation(pool)
		population = append([]*individual(nil), pool[:o.cfg.Population]...)

		o.logger.Debug("generation evaluated",
			zap.Int("generation", gen+1),
			zap.Int("best_objective", population[0].score.Objective()),
			zap.Int("best_fitness", population[0].score.Value()),
		)
	}

	best := population[0].clone()
	return best.genes, best.score, nil
}

// sortPopulation orders individuals by objective; the stable sort keeps
// incumbents ahead of equally fit offspring.
func sortPopulation(pop []*individual) {
	sort.SliceStable(pop, func(i, j int) bool {
		return pop[i].score.Objective() < pop[j].score.Objective()
	})
}

// evaluate scores every stale individual, splitting the slice into one chunk
// per worker. Individuals are never shared between chunks.
func (o *GeneticOptimizer) evaluate(ctx context.Context, pop []*individual) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(o.workers)
	chunk := (len(pop) + o.workers - 1) / o.workers
	if chunk == 0 {
		chunk = 1
	}
	for start := 0; start < len(pop); start += chunk {
		part := pop[start:min(start+chunk, len(pop))]
		eg.Go(func() error {
			for _, ind := range part {
				if err := ctx.Err(); err != nil {
					return err
				}
				if !ind.stale {
					continue
				}
				score, err := o.constraints.Evaluate(ind.genes)
				if err != nil {
					return err
				}
				ind.score = score
				ind.stale = false
			}
			return nil
		})
	}
	return eg.Wait()
}

func (o *GeneticOptimizer) tournament(pop []*individual) *individual {
	best := pop[o.rng.Intn(len(pop))]
	for i := 1; i < o.cfg.TournamentSize; i++ {
		contender := pop[o.rng.Intn(len(pop))]
		if contender.score.Objective() < best.score.Objective() {
			best = contender
		}
	}
	return best
}

// construct builds a random individual: every required session on a random
// feasible cell, then a lenient pass over empty cells ignoring requirements.
func (o *GeneticOptimizer) construct() []gene {
	c := o.constraints
	l := newLedger(c)
	var genes []gene

	for _, s := range o.rng.Perm(len(c.subjects)) {
		cands := append([]candidate(nil), c.candidates[s]...)
		for session := 0; session < c.subjects[s].SessionsPerWeek; session++ {
			o.rng.Shuffle(len(cands), func(i, j int) { cands[i], cands[j] = cands[j], cands[i] })
			if g, ok := o.firstFree(l, s, cands); ok {
				l.book(g)
				genes = append(genes, g)
			}
		}
	}

	labels := len(c.universe.Labels)
	for _, cell := range o.rng.Perm(c.universe.CellCount()) {
		day, label := cell/labels, cell%labels
		if c.universe.Blocked(day, label) || l.occupied(day, label) {
			continue
		}
		options := append([]placement(nil), c.byCell[cell]...)
		o.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
		for _, opt := range options {
			if g, ok := o.firstFree(l, opt.subject, []candidate{opt.cand}); ok {
				l.book(g)
				genes = append(genes, g)
				break
			}
		}
	}
	return genes
}

func (o *GeneticOptimizer) firstFree(l *ledger, subject int, cands []candidate) (gene, bool) {
	c := o.constraints
	for _, cand := range cands {
		for room := range c.rooms {
			if c.free(l, subject, cand, room) {
				return gene{subject: subject, faculty: cand.faculty, day: cand.day, label: cand.label, room: room}, true
			}
		}
	}
	return gene{}, false
}

// crossover splits each parent at a random point and swaps tails. Each child
// is rebuilt in order, dropping genes that conflict with genes kept earlier.
func (o *GeneticOptimizer) crossover(a, b []gene) ([]gene, []gene) {
	cutA := o.rng.Intn(len(a) + 1)
	cutB := o.rng.Intn(len(b) + 1)
	childA := make([]gene, 0, cutA+len(b)-cutB)
	childA = append(append(childA, a[:cutA]...), b[cutB:]...)
	childB := make([]gene, 0, cutB+len(a)-cutA)
	childB = append(append(childB, b[:cutB]...), a[cutA:]...)
	return o.repair(childA), o.repair(childB)
}

// repair keeps genes in order and drops any that fail the hard constraints
// against what was already kept.
func (o *GeneticOptimizer) repair(genes []gene) []gene {
	kept, _ := o.repairWithLedger(genes)
	return kept
}

func (o *GeneticOptimizer) repairWithLedger(genes []gene) ([]gene, *ledger) {
	c := o.constraints
	l := newLedger(c)
	kept := genes[:0:0]
	for _, g := range genes {
		if !c.isAssignmentValid(l, g) {
			continue
		}
		l.book(g)
		kept = append(kept, g)
	}
	return kept, l
}

// mutate repairs the individual, then moves each gene with probability
// GeneMutationRate to the best ranked alternative placement, if any.
func (o *GeneticOptimizer) mutate(genes []gene) []gene {
	kept, l := o.repairWithLedger(genes)
	for i, g := range kept {
		if o.rng.Float64() >= o.cfg.GeneMutationRate {
			continue
		}
		l.release(g)
		current := g
		replacement, ok := searchPlacement(o.constraints, l, o.rng, g.subject, func(alt gene) bool {
			return alt.faculty == current.faculty && alt.day == current.day && alt.label == current.label
		})
		if !ok {
			l.book(g)
			continue
		}
		l.book(replacement)
		kept[i] = replacement
	}
	return kept
}
