package detector

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/gocpd/internal/storage"
	"github.com/dshills/gocpd/pkg/types"
)

// DefaultCacheSize is the number of project reports kept in memory
const DefaultCacheSize = 64

// Options filters the clone groups returned by FindClones
type Options struct {
	MinLines int // Drop groups spanning fewer lines (0 keeps all)
	Limit    int // Maximum groups returned (0 means unlimited)
}

// Report contains the clone groups of a project and metadata
type Report struct {
	Groups          []types.CloneGroup
	TotalGroups     int // Groups before Limit was applied
	DuplicatedLines int // Sum over returned groups of lines in every part but the first
	Duration        time.Duration
	CacheHit        bool
}

type cacheKey struct {
	projectID   int64
	lastIndexed int64
}

// Detector turns stored duplicate blocks into clone groups
type Detector struct {
	storage storage.Storage
	cache   *lru.Cache[cacheKey, []types.CloneGroup]
	cacheMu sync.Mutex
}

// New creates a Detector with the default cache size
func New(store storage.Storage) *Detector {
	cache, err := lru.New[cacheKey, []types.CloneGroup](DefaultCacheSize)
	if err != nil {
		// Only returned for a non-positive size
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}

	return &Detector{
		storage: store,
		cache:   cache,
	}
}

// FindClones returns the clone groups of a project, largest first.
//
// Results are cached per project until the project is indexed again.
func (d *Detector) FindClones(ctx context.Context, projectID int64, opts Options) (*Report, error) {
	startTime := time.Now()

	project, err := d.storage.GetProjectByID(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load project: %w", err)
	}
	key := cacheKey{projectID: project.ID, lastIndexed: project.LastIndexedAt.UnixNano()}

	d.cacheMu.Lock()
	groups, hit := d.cache.Get(key)
	d.cacheMu.Unlock()

	if !hit {
		blocks, err := d.storage.ListDuplicateBlocks(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("failed to list duplicate blocks: %w", err)
		}
		groups = GroupClones(blocks)

		d.cacheMu.Lock()
		d.cache.Add(key, groups)
		d.cacheMu.Unlock()
	}

	report := &Report{CacheHit: hit}
	for _, g := range groups {
		if g.Lines() < opts.MinLines {
			continue
		}
		report.TotalGroups++
		if opts.Limit > 0 && len(report.Groups) >= opts.Limit {
			continue
		}
		report.Groups = append(report.Groups, copyGroup(g))
		report.DuplicatedLines += duplicatedLines(g)
	}
	report.Duration = time.Since(startTime)

	return report, nil
}

// InvalidateCache drops every cached report
func (d *Detector) InvalidateCache() {
	d.cacheMu.Lock()
	d.cache.Purge()
	d.cacheMu.Unlock()
}

type location struct {
	resourceID string
	index      int
}

// GroupClones merges duplicate blocks into clone groups.
//
// Blocks whose hash is shared by the same set of locations, each shifted by
// one index, extend the same group. The result is sorted by span (largest
// first), then by the first part's resource and line.
func GroupClones(blocks []*storage.Block) []types.CloneGroup {
	byHash := make(map[types.Hash][]*storage.Block)
	byLocation := make(map[location]*storage.Block, len(blocks))
	for _, b := range blocks {
		byHash[b.Hash] = append(byHash[b.Hash], b)
		byLocation[location{b.FilePath, b.IndexInFile}] = b
	}

	// shift returns the blocks found at offset step from every occurrence,
	// provided they all share one hash that occurs exactly as often
	shift := func(from []*storage.Block, step int) ([]*storage.Block, bool) {
		shifted := make([]*storage.Block, len(from))
		for i, b := range from {
			nb, ok := byLocation[location{b.FilePath, b.IndexInFile + step}]
			if !ok || (i > 0 && nb.Hash != shifted[0].Hash) {
				return nil, false
			}
			shifted[i] = nb
		}
		return shifted, len(byHash[shifted[0].Hash]) == len(from)
	}

	groups := make([]types.CloneGroup, 0)
	for hash, occurrences := range byHash {
		if len(occurrences) < 2 {
			continue
		}
		// Not the first block of its run
		if _, ok := shift(occurrences, -1); ok {
			continue
		}

		last, count := occurrences, 1
		for {
			next, ok := shift(last, 1)
			if !ok {
				break
			}
			last = next
			count++
		}

		group := types.CloneGroup{
			Hash:   hash,
			Blocks: count,
			Parts:  make([]types.ClonePart, len(occurrences)),
		}
		for i, first := range occurrences {
			group.Parts[i] = types.ClonePart{
				ResourceID: first.FilePath,
				StartLine:  first.StartLine,
				EndLine:    last[i].EndLine,
				StartIndex: first.IndexInFile,
				EndIndex:   last[i].IndexInFile,
			}
		}
		sort.Slice(group.Parts, func(i, j int) bool {
			return partLess(group.Parts[i], group.Parts[j])
		})
		groups = append(groups, group)
	}

	sort.Slice(groups, func(i, j int) bool {
		li, lj := groups[i].Lines(), groups[j].Lines()
		if li != lj {
			return li > lj
		}
		return partLess(groups[i].Parts[0], groups[j].Parts[0])
	})

	return groups
}

func partLess(a, b types.ClonePart) bool {
	if a.ResourceID != b.ResourceID {
		return a.ResourceID < b.ResourceID
	}
	if a.StartLine != b.StartLine {
		return a.StartLine < b.StartLine
	}
	return a.StartIndex < b.StartIndex
}

func duplicatedLines(g types.CloneGroup) int {
	total := 0
	for _, p := range g.Parts[1:] {
		total += p.Lines()
	}
	return total
}

func copyGroup(g types.CloneGroup) types.CloneGroup {
	parts := make([]types.ClonePart, len(g.Parts))
	copy(parts, g.Parts)
	g.Parts = parts
	return g
}
