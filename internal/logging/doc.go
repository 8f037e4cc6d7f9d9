// Package logging provides file-based structured logging with rotation.
//
// Every command writes JSON lines to ~/.psearch/logs/psearch.log. With
// --debug the level drops to debug and the same lines are mirrored to
// stderr. `psearch logs` reads the file back through Viewer.
package logging
