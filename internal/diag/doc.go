// Package diag defines the diagnostic model of the blocking pipeline.
//
// The pass itself never fails on an expected condition: a glue op that does
// not emulate a pack or unpack, a contraction whose operand tiles disagree or
// a value still laid out for a whole workgroup are left alone and recorded as
// diagnostics instead. Internal invariant violations and IR verification
// failures are reported with error severity by the driver.
//
// Producers go through a Reporter (usually a BagReporter, optionally wrapped
// in a DedupReporter) and build entries with ReportWarning / ReportInfo /
// ReportError. Locations address operations by unit name and op handle.
//
// FormatGoldenDiagnostics renders a stable one-line-per-entry form used in
// tests and for the short CLI output; Pretty renders the coloured long form.
package diag
