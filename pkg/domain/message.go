package domain

import "github.com/mitchellh/mapstructure"

// Message is an opaque payload travelling along a graph edge.
// The payload shape is part of the contract between adjacent steps,
// not of the engine.
type Message struct {
	// Payload is the data carried by this message.
	Payload any

	// Origin is the ID of the node that produced the message.
	// Empty for the run's initial input.
	Origin string
}

// Decode maps the payload into a typed struct using "mapstructure" tags.
// If the payload already has the target type, it is assigned directly.
func (m Message) Decode(out any) error {
	return mapstructure.Decode(m.Payload, out)
}

// Send is one outgoing message produced by a step. If Target is empty the
// message is broadcast along every outgoing edge of the producing node.
type Send struct {
	Payload any
	Target  string
}
