// Package console is the application layer tying the dashboard together.
//
// A Controller owns all mutable session state for one authenticated identity
// and wires the pipeline: file submission through the uploads manager,
// analytics record materialization on completion, live channel event
// application, and the history/stats/verify/export operations the commands
// expose. State lives on the controller, never in package variables.
package console
