package policy

// Rejection reasons are short machine strings. They end up in the decision
// log and must never be leaked verbatim to the remote sender.
const (
	ReasonHostBlocked     = "host is blocked"
	ReasonDeletesRejected = "deletes from this host are rejected"
	ReasonReportsRejected = "reports from this host are rejected"
	ReasonKeywordBlocked  = "Blocked by keyword filter"
	ReasonTooManyMentions = "too many mentions"
)

// Rejection describes why a filter refused an activity.
type Rejection struct {
	Filter string
	Reason string
}

// Filter evaluates one moderation concern. Apply returns the accepted
// document (possibly a transformed copy, never a mutation of the input) or a
// rejection. Filters must tolerate malformed documents: a missing field is
// treated as empty, never as an error.
type Filter interface {
	Name() string
	Apply(doc Document) (Document, *Rejection)
}

// Pipeline runs filters in a fixed order, threading the possibly transformed
// document through each. The first rejection wins and no later filter runs.
type Pipeline struct {
	filters []Filter
}

func NewPipeline(filters ...Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

// Apply evaluates the document against every filter in order.
func (p *Pipeline) Apply(doc Document) (Document, *Rejection) {
	current := doc
	for _, filter := range p.filters {
		next, rejection := filter.Apply(current)
		if rejection != nil {
			return nil, rejection
		}
		current = next
	}
	return current, nil
}

// Filters returns the configured filter names in evaluation order.
func (p *Pipeline) Filters() []string {
	names := make([]string, 0, len(p.filters))
	for _, filter := range p.filters {
		names = append(names, filter.Name())
	}
	return names
}
