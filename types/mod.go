package types

// Message defines the type of message sent between workers. It must be
// registered to the message registry so that it can be marshaled and routed
// to its callback.
type Message interface {
	// NewEmpty returns a new empty message of the same type, used by the
	// registry to unmarshal an incoming payload.
	NewEmpty() Message

	// Name returns the unique name of the message.
	Name() string

	String() string

	// HTML returns an HTML representation for the http control surface.
	HTML() string
}
