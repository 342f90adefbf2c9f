// Package report renders run progress and results: a console reporter for
// terminals, a JSON reporter for machines, and a fan-out combining them.
package report
