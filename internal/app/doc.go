// Package app provides the session layer of the image adjuster.
//
// A Session owns one operator's alignment state (frame index, offsets, rotation,
// opacities, blink mode) and applies every update rule under a single lock. The
// Registry maps session IDs to sessions and translates Commands from the transport
// into session operations. Render derives the two-layer View from a state.
package app
