// Package harness exercises a local HTTP API with an ordered list of
// multipart checks and reports one labeled outcome per check.
//
// Checks run one at a time in list order. A failing check never stops the
// run: HTTP status failures, transport failures, unreadable files and
// unmet expectations are all recorded on the Outcome and logged.
package harness
