package auth

// Capability is a named privilege checked before an operation is allowed.
type Capability string

const (
	CapViewCohorts   Capability = "View Cohorts"
	CapAddCohorts    Capability = "Add Cohorts"
	CapEditCohorts   Capability = "Edit Cohorts"
	CapDeleteCohorts Capability = "Delete Cohorts"
	CapPurgeCohorts  Capability = "Purge Cohorts"

	CapViewConcepts   Capability = "View Concepts"
	CapManageConcepts Capability = "Manage Concepts"
	CapPurgeConcepts  Capability = "Purge Concepts"
)

// AllCapabilities lists every capability known to the service.
func AllCapabilities() []Capability {
	return []Capability{
		CapViewCohorts, CapAddCohorts, CapEditCohorts, CapDeleteCohorts, CapPurgeCohorts,
		CapViewConcepts, CapManageConcepts, CapPurgeConcepts,
	}
}
