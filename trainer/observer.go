package trainer

import "log"

type EpochObserver interface {
	OnEpochEnd(epoch int, loss float32)
}

type EpochObserverFunc func(epoch int, loss float32)

func (f EpochObserverFunc) OnEpochEnd(epoch int, loss float32) {
	f(epoch, loss)
}

type IterationObserver interface {
	OnIterationEnd(it Iteration)
}

type IterationObserverFunc func(it Iteration)

func (f IterationObserverFunc) OnIterationEnd(it Iteration) {
	f(it)
}

// LogObserver logs every Interval-th epoch and every iteration.
type LogObserver struct {
	Interval int
}

func (o LogObserver) OnEpochEnd(epoch int, loss float32) {
	if o.Interval > 0 && epoch%o.Interval == 0 {
		log.Printf("epoch=%d loss=%.6f", epoch, loss)
	}
}

func (o LogObserver) OnIterationEnd(it Iteration) {
	log.Printf("iteration=%d samples=%d final-loss=%.6f cost=%.6f", it.Index, it.Data.Len(), it.History.FinalLoss(), it.Cost)
}
