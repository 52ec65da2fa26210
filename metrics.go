package monitorz

// Metrics describes the registry itself rather than the operations it
// monitors. Counter fields are updated atomically; QueueCapacity is static
// once the worker pool has started.
type Metrics struct {
	// Registry size
	Operations int64 // Distinct operation names ever registered

	// Observer registration
	RegisteredObservers int64

	// Observer queue
	QueueDepth    int64 // Events waiting for a worker
	QueueCapacity int64 // Zero until the first observer starts the pool

	// Delivery counters
	EventsDelivered  int64 // Events handed to every observer
	EventsDropped    int64 // Events rejected because the queue was full
	ObserverFailures int64 // Callbacks that returned an error or panicked
}
