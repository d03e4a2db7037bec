package queue

// State is the dispatch state of a workflow id inside the queue.
type State string

const (
	StateAbsent   State = "absent"
	StateQueued   State = "queued"
	StateInFlight State = "in_flight"
)

// Stats describes queue occupancy at one instant.
type Stats struct {
	Queued   int
	InFlight int
	Capacity int
	Closed   bool
}
