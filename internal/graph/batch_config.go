package graph

// BatchConfig controls how many nodes or edges are sent per UNWIND/MERGE
// round trip. The presets below keep 100 as the default while still giving
// large ingestion runs a lever to tune throughput.
type BatchConfig struct {
	NodeBatchSize int
	EdgeBatchSize int
}

// DefaultBatchConfig is the batch size ingestion uses unless tuned.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{NodeBatchSize: 100, EdgeBatchSize: 100}
}

// SmallRepoBatchConfig trades throughput for lower memory pressure on tiny
// repositories.
func SmallRepoBatchConfig() BatchConfig {
	return BatchConfig{NodeBatchSize: 50, EdgeBatchSize: 50}
}

// LargeRepoBatchConfig raises batch sizes for repositories large enough
// that per-round-trip overhead dominates.
func LargeRepoBatchConfig() BatchConfig {
	return BatchConfig{NodeBatchSize: 500, EdgeBatchSize: 1000}
}
