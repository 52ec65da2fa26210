package monitorz

import "errors"

// Observer Management Errors
//
// These errors are returned when managing observer registration.

// ErrAlreadyUnhooked is returned when attempting to unhook an observer
// that has already been unhooked or was never valid.
var ErrAlreadyUnhooked = errors.New("observer already unhooked")

// ErrHookNotFound is returned when attempting to remove an observer
// that no longer exists.
var ErrHookNotFound = errors.New("observer not found")

// ErrTooManyObservers is returned when registering an observer would
// exceed maxObservers.
var ErrTooManyObservers = errors.New("observer limit exceeded")

// Registry Lifecycle Errors

// ErrRegistryClosed is returned by Observe after Close. Recording
// statistics keeps working on a closed registry.
var ErrRegistryClosed = errors.New("registry is closed")

// ErrAlreadyClosed is returned when calling Close more than once.
var ErrAlreadyClosed = errors.New("registry already closed")

// Delivery Errors

// ErrQueueFull is returned internally when the observer queue cannot
// accept an event. The event is dropped and counted in Metrics.EventsDropped.
var ErrQueueFull = errors.New("observer queue is full")

// ErrObserverPanicked marks an observer callback that panicked.
// It is counted in Metrics.ObserverFailures and never returned to callers.
var ErrObserverPanicked = errors.New("observer panicked during execution")
