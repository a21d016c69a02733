// Package models defines the record, delete-queue and connectivity shapes the
// sync engine works on, together with the predicates that select work.
package models
