// Package task runs in-process background work. A Queue buffers tasks
// without blocking and a Pool drains any Source with a fixed number of
// workers, recovering panics and cancelling in-flight work on Stop.
package task
