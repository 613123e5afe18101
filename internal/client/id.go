package client

// id.go generates operation ids using github.com/google/uuid rather than a
// simple atomic counter, so ids carry enough entropy to be safely reused
// as correlation keys by callers that log or trace them.

import "github.com/google/uuid"

func defaultGenerateID() string {
	return uuid.NewString()
}

// nextID produces an id using the configured generator, regenerating on
// collision against currently active ids.
func (c *Client) nextID() string {
	for {
		id := c.cfg.GenerateID()
		c.mu.Lock()
		_, taken := c.sinks[id]
		c.mu.Unlock()
		if !taken {
			return id
		}
	}
}
