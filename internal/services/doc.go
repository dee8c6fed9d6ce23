// Package services defines the error taxonomy shared by pipeline stages and
// the context annotations used to correlate log output with content items.
package services
