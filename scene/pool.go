package scene

import "sync"

// GraphPool recycles graphs between frames so that the vertex, index and
// node arrays are allocated once and reused.
//
// Usage:
//
//	g := pool.Get()
//	defer pool.Put(g)
//	g.DrawRect(scene.Root, rect)
type GraphPool struct {
	pool sync.Pool
}

// NewGraphPool creates a new graph pool.
func NewGraphPool() *GraphPool {
	return &GraphPool{
		pool: sync.Pool{
			New: func() any {
				return New()
			},
		},
	}
}

// Get returns an empty graph.
func (p *GraphPool) Get() *Graph {
	g := p.pool.Get().(*Graph)
	g.Reset()
	return g
}

// Put returns g to the pool. g must not be used afterwards.
func (p *GraphPool) Put(g *Graph) {
	if g == nil {
		return
	}
	p.pool.Put(g)
}
