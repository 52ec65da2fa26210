// Package monitorz provides in-process performance monitoring for named
// operations: entry, exit and failure counts plus latency statistics, kept
// safely under concurrent access from many goroutines.
//
// The package is built from two pieces:
//   - SpinLock: a reentrant, busy-waiting lock for very short critical sections
//   - Registry: a map from operation name to Aggregate, created lazily and
//     never shrunk, where each Aggregate serializes its updates through its
//     own SpinLock
//
// Basic Usage:
//
//	registry := monitorz.New()
//	defer registry.Close()
//
//	// Report the three call points directly
//	registry.RecordEntry("orders.Create")
//	start := time.Now()
//	err := createOrder(ctx, order)
//	registry.RecordCompletion("orders.Create", monitorz.Milliseconds(time.Since(start)), err != nil)
//
//	// Or let a Monitor drive them
//	create := registry.Monitor("orders.Create")
//	err = create.Run(ctx, func(ctx context.Context) error {
//		return createOrder(ctx, order)
//	})
//
//	// Read statistics
//	if stats, ok := registry.Snapshot("orders.Create"); ok {
//		fmt.Println(stats)
//	}
//
// Observers:
//
// Completion events can be fanned out to callbacks registered with Observe.
// Delivery is asynchronous through a bounded worker pool; when the queue is
// full the event is dropped and counted rather than slowing the monitored
// code down.
//
//	hook, err := registry.Observe(func(ctx context.Context, c monitorz.Completion) error {
//		if c.Failed {
//			alerts.Notify(c.Name, c.Err)
//		}
//		return nil
//	})
//	if err != nil {
//		return err
//	}
//	defer hook.Unhook()
//
// Errors returned by monitored operations are never wrapped or swallowed,
// and panics are recorded as failures before being re-raised.
package monitorz

// Key identifies a monitored operation, typically a fully qualified function
// or method signature such as "orders.Service.Create(ctx, Order)".
//
// Define operation names as package constants:
//
//	const (
//		OrderCreate Key = "orders.Service.Create"
//		OrderCancel Key = "orders.Service.Cancel"
//	)
type Key = string
