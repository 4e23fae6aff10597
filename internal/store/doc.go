// Package store persists batch history: one row per dispatch or regeneration
// call and one row per attempted task.
package store
