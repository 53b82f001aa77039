// Package events provides the observability boundary of the task engine.
//
// The task manager and the dispatcher emit TaskEvents describing lifecycle
// changes without knowing who consumes them. Handlers registered with an
// emitter turn those events into structured logs and metrics.
//
// The primary components are:
// - TaskEvent: a lifecycle change of one task, or a rejected submission
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
package events
