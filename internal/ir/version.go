package ir

// Version constants for the fact/rule model and engine.
const (
	// ModelVersion is the fact/rule model schema version.
	ModelVersion = "1"

	// EngineVersion is the sift engine version.
	EngineVersion = "0.1.0"
)
