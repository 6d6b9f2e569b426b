package log

// Run and stage context.
const (
	// RunIDKey identifies one pipeline run (a UUID).
	RunIDKey = "run.id"

	// StageKey names the pipeline stage emitting the record.
	StageKey = "pipeline.stage"

	// ReplicateKey is the replicate letter ("A", "B", ...).
	ReplicateKey = "replicate"

	// ComponentKey identifies the package doing the work.
	ComponentKey = "component"
)

// Data shape.
const (
	ProfilesKey        = "data.profiles"
	FractionsKey       = "data.fractions"
	ReplicatesKey      = "data.replicates"
	ProfilesKeptKey    = "data.profiles_kept"
	ProfilesDroppedKey = "data.profiles_dropped"
)

// Model fitting.
const (
	ComponentsKey = "model.components"
	BICKey        = "model.bic"
	IterationKey  = "model.iteration"
	StrategyKey   = "model.strategy"
)

// Performance and errors.
const (
	DurationMsKey = "perf.duration_ms"
	WorkersKey    = "perf.workers"
	ErrorTypeKey  = "error.type"
	CheckKey      = "error.check"
)

// Stage values.
const (
	StageLoad      = "load"
	StageValidate  = "validate"
	StagePartition = "partition"
	StageTransform = "transform"
	StageExtract   = "extract"
	StageIntegrate = "integrate"
)
