package builder

// State is a step of the build state machine.
type State string

// Build states in the order they can be visited.
const (
	StateResolveInputs State = "RESOLVE_INPUTS"
	StateCheckExisting State = "CHECK_EXISTING"
	StateSkip          State = "SKIP"
	StateCleanAndBuild State = "CLEAN_AND_BUILD"
	StateCompile       State = "COMPILE"
	StatePackage       State = "PACKAGE"
	StateHash          State = "HASH"
	StatePublish       State = "PUBLISH"
	StateDone          State = "DONE"
)
