package backup

// Sink receives byte increments for one job. Its total is fixed when it is
// created. Close releases whatever display resource backs it and is called
// on every exit path of the job.
type Sink interface {
	Add(n int64)
	Close() error
}

// Progress creates one Sink per job.
type Progress interface {
	NewSink(total int64, label string) Sink
}

// Discard is a Progress whose sinks drop every update.
var Discard Progress = discard{}

type discard struct{}

func (discard) NewSink(int64, string) Sink { return discardSink{} }

type discardSink struct{}

func (discardSink) Add(int64)    {}
func (discardSink) Close() error { return nil }
