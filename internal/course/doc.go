// Package course defines the persisted course graph: a Course owns ordered
// Chapters, each owning ordered Parts. Part identifiers are the stable handle
// that reconciliation carries across rescans; progress fields (position,
// watched flag, resume marker) hang off that identity.
package course
