// Package ui renders runs in the terminal: colored status output, the live
// progress display fed by dispatch events and desktop notifications.
package ui
