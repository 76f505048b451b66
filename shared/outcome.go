package shared

// ChangedField names a mutable vulnerability field the upsert engine tracks
// between two feed revisions of the same identifier.
type ChangedField string

const (
	ChangedFieldScore       ChangedField = "score"
	ChangedFieldSeverity    ChangedField = "severity"
	ChangedFieldDescription ChangedField = "description"
	ChangedFieldReferences  ChangedField = "references"
	// ChangedFieldEvidence is raised by the evidence matcher when a
	// vulnerability transitions from zero known exploit evidence to some.
	ChangedFieldEvidence ChangedField = "evidence"
)

type OutcomeKind string

const (
	OutcomeInserted  OutcomeKind = "inserted"
	OutcomeUpdated   OutcomeKind = "updated"
	OutcomeUnchanged OutcomeKind = "unchanged"
)

// UpsertOutcome describes what a single apply of a feed record did to the
// store. ChangedFields is only populated for OutcomeUpdated.
type UpsertOutcome struct {
	Kind          OutcomeKind
	ChangedFields []ChangedField
}

func (o UpsertOutcome) Changed(field ChangedField) bool {
	for _, f := range o.ChangedFields {
		if f == field {
			return true
		}
	}
	return false
}

// Mutated reports whether the apply wrote anything, i.e. whether downstream
// enrichment and notification should run at all.
func (o UpsertOutcome) Mutated() bool {
	return o.Kind == OutcomeInserted || o.Kind == OutcomeUpdated
}
