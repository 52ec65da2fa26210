package monitorz

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// weightFactor is the smoothing factor of the weighted moving average.
const weightFactor = 0.25

// Aggregate holds running statistics for one named operation.
//
// Entries are counted with a single atomic add and never take the lock.
// Every other field is mutated only while holding the embedded SpinLock, so
// a completion is applied as one indivisible update.
type Aggregate struct {
	name    Key
	entries atomic.Int64

	lock            SpinLock
	exits           int64
	failures        int64
	totalDuration   float64
	maxDuration     float64
	lastDuration    float64
	weightedAverage float64
}

func newAggregate(name Key) *Aggregate {
	return &Aggregate{name: name}
}

// Name returns the operation name the aggregate was created for.
func (a *Aggregate) Name() Key { return a.name }

// Enter counts one start of the operation.
func (a *Aggregate) Enter() { a.entries.Add(1) }

// Complete records one finished invocation that took elapsed milliseconds
// and returns the updated last duration.
func (a *Aggregate) Complete(elapsed float64, failed bool) float64 {
	a.lock.Lock()
	defer a.lock.Unlock()

	a.exits++
	if failed {
		a.failures++
	}
	a.totalDuration += elapsed
	a.maxDuration = math.Max(a.maxDuration, elapsed)
	a.lastDuration = elapsed
	if a.exits == 1 {
		a.weightedAverage = elapsed
	} else {
		a.weightedAverage += (elapsed - a.weightedAverage) * weightFactor
	}
	return a.lastDuration
}

// Statistics returns a point-in-time copy of the aggregate.
func (a *Aggregate) Statistics() Statistics {
	a.lock.Lock()
	s := Statistics{
		Name:            a.name,
		Exits:           a.exits,
		Failures:        a.failures,
		TotalDuration:   a.totalDuration,
		MaxDuration:     a.maxDuration,
		LastDuration:    a.lastDuration,
		WeightedAverage: a.weightedAverage,
	}
	a.lock.Unlock()

	s.Entries = a.entries.Load()
	// 0/0 yields NaN for operations that have not completed yet.
	s.AverageDuration = s.TotalDuration / float64(s.Exits)
	return s
}

// Statistics is an immutable snapshot of an Aggregate.
// Durations are in milliseconds.
type Statistics struct {
	Name            Key
	Entries         int64
	Exits           int64
	Failures        int64
	TotalDuration   float64
	AverageDuration float64 // NaN while Exits == 0
	MaxDuration     float64
	LastDuration    float64
	WeightedAverage float64
}

// InFlight estimates the number of invocations that have started but not
// completed. Entries and exits are read at slightly different instants, so
// the value is approximate under load.
func (s Statistics) InFlight() int64 {
	if n := s.Entries - s.Exits; n > 0 {
		return n
	}
	return 0
}

// String renders every field in declaration order.
func (s Statistics) String() string {
	var b strings.Builder
	b.WriteString("Method: ")
	b.WriteString(s.Name)
	b.WriteString(", Entries: ")
	b.WriteString(strconv.FormatInt(s.Entries, 10))
	b.WriteString(", Exits: ")
	b.WriteString(strconv.FormatInt(s.Exits, 10))
	b.WriteString(", Failures: ")
	b.WriteString(strconv.FormatInt(s.Failures, 10))
	writeFloat(&b, ", TotalDuration: ", s.TotalDuration)
	writeFloat(&b, ", AverageDuration: ", s.AverageDuration)
	writeFloat(&b, ", MaxDuration: ", s.MaxDuration)
	writeFloat(&b, ", LastDuration: ", s.LastDuration)
	writeFloat(&b, ", WeightedAverage: ", s.WeightedAverage)
	return b.String()
}

func writeFloat(b *strings.Builder, label string, v float64) {
	b.WriteString(label)
	b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
}

// Milliseconds converts d to fractional milliseconds, the unit used by
// RecordCompletion and Statistics.
func Milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
