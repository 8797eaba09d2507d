// Package tools provides command execution shared by the bootstrapper.
//
// Ownership boundary:
// - captured execution for probes (CommandRunner)
//
// - streamed, cancellable execution for installers and servers (StreamRunner)
//
// - local (ExecRunner) and remote (SSHRunner) hosts
package tools
