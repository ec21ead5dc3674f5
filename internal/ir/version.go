package ir

// Version constants for the program representation and engine.
const (
	// IRVersion is the program representation schema version.
	IRVersion = "1"

	// EngineVersion is the fcrcheck engine version.
	EngineVersion = "0.3.0"

	// RuleSet names the composition rules this engine enforces.
	RuleSet = "FCR-1.0"
)
