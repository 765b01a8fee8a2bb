// Package sessionscope resolves the stable routing key for a logical
// session tree: either the live session id, or its transitive root,
// depending on policy. Resolutions are memoised in a bounded cache so the
// parent-chain walk runs at most once per session id.
package sessionscope

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/portmantle/shipyard/internal/log"
)

// MaxDepth bounds the parent-chain walk.
const MaxDepth = 10

// DefaultCacheSize is the number of resolved scopes kept in memory.
const DefaultCacheSize = 512

// ParentLookup is the agent framework's session tree, as seen by the
// resolver. ok is false when sessionID has no parent (it is a root).
type ParentLookup interface {
	ParentID(ctx context.Context, sessionID string) (parentID string, ok bool, err error)
}

// Resolver memoises scope resolutions over a ParentLookup.
type Resolver struct {
	lookup ParentLookup
	cache  *lru.Cache[string, string]
}

// New builds a Resolver backed by lookup, with a cache of the given size.
// A size of 0 uses DefaultCacheSize.
func New(lookup ParentLookup, size int) (*Resolver, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, err
	}
	return &Resolver{lookup: lookup, cache: cache}, nil
}

// Resolve returns the scope id for sessionID under the given scope policy
// ("session" or "root"). For "session", the live id is returned directly,
// with no walk and no cache lookup. For "root", the transitive root is
// found (on a lookup error the walk stops and the last id reached, the
// session itself if the first lookup fails, is taken as the root), and
// every id visited along the way is cached to point at that root.
func (r *Resolver) Resolve(ctx context.Context, sessionID, scope string) (string, error) {
	if scope == "session" {
		return sessionID, nil
	}

	if cached, ok := r.cache.Get(sessionID); ok {
		return cached, nil
	}

	visited := []string{sessionID}
	root := sessionID
	current := sessionID

	for depth := 0; depth < MaxDepth; depth++ {
		parentID, ok, err := r.lookup.ParentID(ctx, current)
		if err != nil {
			log.Warn("resolving session parent, treating as its own root", "sessionId", current, "error", err)
			root = current
			break
		}
		if !ok || parentID == "" {
			root = current
			break
		}
		current = parentID
		root = current
		visited = append(visited, current)
	}

	for _, id := range visited {
		r.cache.Add(id, root)
	}

	return root, nil
}
