package benchmarks

import (
	"fmt"
	"math/rand"
)

// generateOperationNames creates n distinct names shaped like real method
// signatures so map hashing sees realistic key lengths.
func generateOperationNames(n int) []string {
	services := []string{"orders.Service", "payments.Gateway", "catalog.Search", "users.Repository"}
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%s.Method%04d(context.Context, string, int)", services[i%len(services)], i)
	}
	return names
}

// generateDurations returns n durations in milliseconds with a long tail.
func generateDurations(n int) []float64 {
	durations := make([]float64, n)
	for i := range durations {
		d := rand.ExpFloat64() * 5
		if rand.Intn(100) == 0 {
			d *= 20
		}
		durations[i] = d
	}
	return durations
}
