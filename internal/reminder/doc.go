// Package reminder holds the reminder form rules shared by the Mini-App client
// and the backend: time parsing, normalization, validation, the schedule kind
// switch and the payload builders. Everything here is pure and never panics.
package reminder
