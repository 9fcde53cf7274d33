// Package asyncop provides the single-resolution future used to observe
// completion of a command executed on another goroutine.
//
// An Op is created unresolved when a return-producing command is queued and
// is resolved exactly once by the goroutine that executes the command. The
// issuing side may poll IsResolved, select on Done, or block in Wait.
//
// Resolution is monotonic: once an Op carries a value (or a cancellation),
// that outcome never changes. A second resolution attempt is a no-op; this
// is what makes it safe for playback code to backstop callbacks that forgot
// to resolve their Op.
package asyncop
