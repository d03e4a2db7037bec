package cromwell

import (
	"maps"
	"slices"
	"time"
)

// Status is a Cromwell workflow lifecycle state.
type Status string

const (
	StatusSubmitted Status = "Submitted"
	StatusOnHold    Status = "On Hold"
	StatusRunning   Status = "Running"
	StatusAborting  Status = "Aborting"
	StatusAborted   Status = "Aborted"
	StatusFailed    Status = "Failed"
	StatusSucceeded Status = "Succeeded"
)

// Label keys with meaning to the dispatcher.
const (
	LabelBundleUUID     = "bundle-uuid"
	LabelBundleVersion  = "bundle-version"
	LabelCollectionName = "caas-collection-name"
)

// WorkflowRecord is one workflow returned by a query. Records are read-only
// snapshots; only the ID travels further into the dispatch pipeline.
type WorkflowRecord struct {
	ID         string
	Name       string
	Status     Status
	Labels     map[string]string
	Submission time.Time
}

// BundleUUID returns the bundle-uuid label, if any.
func (r WorkflowRecord) BundleUUID() string { return r.Labels[LabelBundleUUID] }

// BundleVersion returns the bundle-version label, if any.
func (r WorkflowRecord) BundleVersion() string { return r.Labels[LabelBundleVersion] }

// Filter selects workflows in the engine: a status plus an optional label
// equality predicate (all labels must match).
type Filter struct {
	Status              Status
	Labels              map[string]string
	IncludeSubworkflows bool
}

// WithLabel returns a copy of the filter with one more label predicate.
func (f Filter) WithLabel(key, value string) Filter {
	labels := make(map[string]string, len(f.Labels)+1)
	maps.Copy(labels, f.Labels)
	labels[key] = value
	f.Labels = labels
	return f
}

// queryBody renders the filter in the Cromwell POST /query syntax: a list of
// single-key objects. Label predicates are emitted in key order.
func (f Filter) queryBody() []map[string]string {
	status := f.Status
	if status == "" {
		status = StatusOnHold
	}
	body := []map[string]string{{"status": string(status)}}
	for _, key := range slices.Sorted(maps.Keys(f.Labels)) {
		body = append(body, map[string]string{"label": key + ":" + f.Labels[key]})
	}
	body = append(body,
		map[string]string{"additionalQueryResultFields": "labels"},
		map[string]string{"includeSubworkflows": boolString(f.IncludeSubworkflows)},
	)
	return body
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// OldestFirst orders records by submission time, oldest first. Records without
// a submission timestamp keep their relative order after the dated ones.
func OldestFirst(records []WorkflowRecord) {
	slices.SortStableFunc(records, func(a, b WorkflowRecord) int {
		switch {
		case a.Submission.IsZero() && b.Submission.IsZero():
			return 0
		case a.Submission.IsZero():
			return 1
		case b.Submission.IsZero():
			return -1
		default:
			return a.Submission.Compare(b.Submission)
		}
	})
}
