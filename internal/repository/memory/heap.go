package memory

import "github.com/kailas-cloud/vecmatch/internal/domain/entity"

type scored struct {
	id         string
	similarity float64
	entity     entity.Entity
}

// better is the query order: similarity descending, id ascending.
func (s scored) better(o scored) bool {
	if s.similarity != o.similarity {
		return s.similarity > o.similarity
	}
	return s.id < o.id
}

// hitHeap keeps the worst retained hit at the root.
type hitHeap []scored

func (h hitHeap) Len() int           { return len(h) }
func (h hitHeap) Less(i, j int) bool { return h[j].better(h[i]) }
func (h hitHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *hitHeap) Push(x any) { *h = append(*h, x.(scored)) }

func (h *hitHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
