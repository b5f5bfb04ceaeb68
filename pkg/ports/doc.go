// Package ports defines the contracts between the docweave core and its
// external collaborators. The engine treats extraction, compliance
// evaluation and result storage as opaque services consumed through these
// narrow request/response interfaces; adapters provide the implementations.
package ports
