// Package state owns the bounded well-being metrics and their time-based decay.
//
// Decay algorithm:
//   - Each metric may carry a signed rate per hour (missing or zero means no decay)
//   - One elapsed window, now - lastUpdate in hours, is used for every rate in a call
//   - value = clamp(value + rate * elapsedHours, 0, 100)
//   - lastUpdate moves to now after every call, so the next window starts there
//   - A clock that moved backwards yields no adjustment, only a new lastUpdate
//   - Runs every few seconds from Engine.Start and once on every CLI open
//
// Store is not safe for concurrent use; the engine serializes access.
package state
