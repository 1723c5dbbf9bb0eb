// Package domain defines the core types shared by the session layer and the adapters.
//
// It holds the session state, snapshots, rendered views, input commands, and the
// Publisher and SessionObserver interfaces. No implementation code lives here.
package domain
