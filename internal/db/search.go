package db

// KNNQuery is the input for vector similarity search.
// Filter is a pre-built FT.SEARCH pre-filter; empty means all documents.
type KNNQuery struct {
	IndexName    string
	Filter       string
	VectorField  string
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit. Score is cosine similarity (1 - distance).
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
