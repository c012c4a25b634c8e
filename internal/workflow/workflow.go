// Package workflow describes pipeline phases as small dependency graphs of
// document steps, plus the fixed phase order and output layout shared by the
// driver and the CLI.
package workflow

// Canonical phase identifiers. They double as memory namespaces.
const (
	PhaseInitiation   = "initiation"
	PhasePlanning     = "planning"
	PhaseRequirements = "requirements"
	PhaseDesign       = "design"
	PhaseDevelopment  = "development"
	PhaseTesting      = "testing"
	PhaseDeployment   = "deployment"
	PhaseMaintenance  = "maintenance"
)

// RequestPhase is the memory namespace holding the seed request.
const RequestPhase = "request"

// RequestKey is the store key of the seed request.
const RequestKey = "system_request"

// RequestFolder is the output folder receiving the seed request document.
const RequestFolder = "0_request"

// RequestFile is the file name of the seed request document.
const RequestFile = "system_request.txt"

// Order lists the phases in the sequence a pipeline run visits them.
var Order = []string{
	PhaseInitiation,
	PhasePlanning,
	PhaseRequirements,
	PhaseDesign,
	PhaseDevelopment,
	PhaseTesting,
	PhaseDeployment,
	PhaseMaintenance,
}

// Position returns the index of id within Order, or -1.
func Position(id string) int {
	for i, candidate := range Order {
		if candidate == id {
			return i
		}
	}
	return -1
}
