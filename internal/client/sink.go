package client

import "github.com/kbrandt/gqltransport/protocol"

// Sink is the caller-facing capability set that receives results for one
// subscribe call. There is no inheritance -- it is a plain record of three
// callbacks, any of which may be nil.
type Sink struct {
	Next     func(result *protocol.ExecutionResult)
	Error    func(err error)
	Complete func()
}

func (s Sink) callNext(result *protocol.ExecutionResult) {
	if s.Next != nil {
		s.Next(result)
	}
}

func (s Sink) callError(err error) {
	if s.Error != nil {
		s.Error(err)
	}
}

func (s Sink) callComplete() {
	if s.Complete != nil {
		s.Complete()
	}
}

// Subscription is the handle returned by Client.Subscribe.
type Subscription struct {
	id string
	c  *Client
}

// Unsubscribe cancels the subscription. Invoking it more than once, or
// after a terminal outcome has already been delivered, is a no-op.
func (s *Subscription) Unsubscribe() {
	s.c.unsubscribe(s.id)
}

// ID returns the operation id assigned to this subscription. The id does
// not change across a reconnect: a retry-triggered resubscribe re-sends the
// operation under this same id rather than allocating a new one.
func (s *Subscription) ID() string {
	return s.id
}
