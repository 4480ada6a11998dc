package domain

// Defaults for per-document indexes.
const (
	DefaultDimension = 1024
	DefaultMetric    = "cosine"
	DefaultCloud     = "aws"
	DefaultRegion    = "us-east-1"
)

// IndexSpec describes an index to create.
type IndexSpec struct {
	// Name is the unique index name.
	Name string

	// Dimension is the vector size.
	Dimension int

	// Metric is the similarity metric (cosine, euclidean, dotproduct).
	Metric string

	// Cloud and Region place a serverless index.
	Cloud  string
	Region string
}

// NewIndexSpec returns a spec with the default dimension, metric and placement.
func NewIndexSpec(name string) IndexSpec {
	return IndexSpec{
		Name:      name,
		Dimension: DefaultDimension,
		Metric:    DefaultMetric,
		Cloud:     DefaultCloud,
		Region:    DefaultRegion,
	}
}

// IndexDescription is the control-plane view of an index.
type IndexDescription struct {
	Name      string
	Dimension int
	Metric    string

	// Host is the data-plane endpoint, when the store has one.
	Host string

	// Ready is true once the index accepts reads and writes.
	Ready bool

	// State is the provider-specific lifecycle state.
	State string
}

// IndexStats is the data-plane view of an index.
type IndexStats struct {
	// TotalVectorCount is the number of stored vectors.
	TotalVectorCount int64

	// Dimension is the vector size reported by the index.
	Dimension int
}

// VectorRecord is a chunk ready to be written to an index.
type VectorRecord struct {
	ID       string
	Values   []float32
	Content  string
	Metadata map[string]any
}

// ScoredChunk is a chunk returned by a similarity query.
type ScoredChunk struct {
	ID       string
	Score    float64
	Content  string
	Metadata map[string]any
}
