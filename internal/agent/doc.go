// Package agent contains the message pipeline. It routes a message to a
// workflow, extracts a typed intent, drives the swap, price or creator
// lookup collaborators and renders the reply. Every run is sequential and
// holds no state between messages.
package agent
