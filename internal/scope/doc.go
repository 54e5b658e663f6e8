// Package scope owns the shared model of the persistence display.
//
// Responsibilities: display configuration, the sample type handed from
// intake to the render task, and the error/signal taxonomy.
// Key types: DisplayConfig, RawReading, Sample, Counters.
//
// Dependency rule: scope is the leaf. ingress, field, projection and overlay
// may depend on it; render depends on all of them. Nothing under scope/
// imports a transport, viewer or config-file package.
package scope
