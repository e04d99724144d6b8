package interfaces

// TaskContext is the task-level completion hook a sorter registers its
// cleanup against at construction time, so that success, failure, or
// cancellation all guarantee exactly one CleanupResources call.
type TaskContext interface {
	OnCompletion(cleanup func())
}
