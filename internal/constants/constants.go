// Package constants provides named constants used throughout the vpgen codebase.
// This centralizes magic numbers for better maintainability and documentation.
package constants

// Simulation horizon defaults, overridable through SIMULATION_START,
// SIMULATION_END and SIMULATION_POINTS.
const (
	// DefaultSimulationStart is the first sampled time.
	DefaultSimulationStart = 0.0

	// DefaultSimulationEnd is the last sampled time.
	DefaultSimulationEnd = 10000.0

	// DefaultSimulationPoints is the number of uniformly spaced samples.
	DefaultSimulationPoints = 100000

	// DefaultTransitory is the fraction of the horizon where the transitory
	// slope of each running mean starts.
	DefaultTransitory = 0.75
)

// Integrator defaults.
const (
	// DefaultRelTol is the relative local error tolerance.
	DefaultRelTol = 1e-6

	// DefaultAbsTol is the absolute local error tolerance.
	DefaultAbsTol = 1e-10

	// DefaultMaxSteps bounds the attempted steps of one integration.
	DefaultMaxSteps = 1_000_000
)

// Objective defaults.
const (
	// DefaultPenalty fills every objective slot of a failed evaluation.
	DefaultPenalty = 100.0

	// DefaultSearchIterations is the number of draws of a random search.
	DefaultSearchIterations = 100

	// DefaultSamples is the number of virtual patients printed by sample.
	DefaultSamples = 10
)
