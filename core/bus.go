package core

// Bus mirrors room fan-out between process instances. Sequence assignment
// stays with the single room-affine process; the bus only extends delivery
// to members connected elsewhere. The single-process default is NoopBus.
type Bus interface {
	PublishMessage(roomID string, msg Message) error
	SubscribeRoom(roomID string, handler func(Message)) error
	UnsubscribeRoom(roomID string)
	Close()
}

// NoopBus is the Bus for a single-process deployment.
type NoopBus struct{}

func (NoopBus) PublishMessage(string, Message) error      { return nil }
func (NoopBus) SubscribeRoom(string, func(Message)) error { return nil }
func (NoopBus) UnsubscribeRoom(string)                    {}
func (NoopBus) Close()                                    {}
