// Package factory provides a generic registry used to build pluggable
// backends from configuration: metrics sinks and audit stores are selected
// by a type name and decoded from a free-form map.
package factory
