// Package dispatch is the thanking state machine.
//
//	Idle -> Discovering -> GroupingBatch -> ProcessingRecipient -> ClearingBatch -> Discovering ...
//
// ending in Completed, Stopped or Failed. The engine runs on a single
// goroutine. Callers talk to it only through RequestStop and the events it
// pushes to a Sink; a stop is observed at the top of every recipient
// iteration and ends any pending delay or cooldown step at once, but never
// interrupts a request already on the wire.
package dispatch
