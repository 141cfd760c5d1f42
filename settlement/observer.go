package settlement

// Observer receives lifecycle and aggregation outcomes. The observability
// package implements it with Prometheus counters.
type Observer interface {
	OperationCompleted(op Operation, err error)
	SourceDegraded(source SourceName, status SourceStatus)
}

type nopObserver struct{}

func (nopObserver) OperationCompleted(Operation, error)      {}
func (nopObserver) SourceDegraded(SourceName, SourceStatus) {}
