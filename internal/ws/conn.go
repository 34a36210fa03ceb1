package ws

import (
	"errors"
	"sync"

	"room-chat/internal/models"
)

var (
	ErrConnClosed     = errors.New("connection closed")
	ErrSendBufferFull = errors.New("send buffer full")
)

const defaultSendBuffer = 64

// Reply answers an inbound action on the connection that sent it.
type Reply struct {
	Type      string            `json:"type"`
	RequestID string            `json:"request_id,omitempty"`
	Action    string            `json:"action"`
	OK        bool              `json:"ok"`
	Code      string            `json:"code,omitempty"`
	Error     string            `json:"error,omitempty"`
	Message   *models.Message   `json:"message,omitempty"`
	Messages  []models.Message  `json:"messages,omitempty"`
	Reactions *models.Reactions `json:"reactions,omitempty"`
	Joined    *bool             `json:"joined,omitempty"`
}

// Conn is a live client connection. Room events arrive on a single typed
// channel which the transport drains; the data channels are never closed, Done
// signals teardown instead.
type Conn struct {
	info    ConnInfo
	events  chan models.Event
	replies chan Reply
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewConn constructs a Conn buffering up to buffer undelivered events.
func NewConn(info ConnInfo, buffer int) *Conn {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	if info.ConnID == "" {
		info.ConnID = newConnID()
	}
	return &Conn{
		info:    info,
		events:  make(chan models.Event, buffer),
		replies: make(chan Reply, buffer),
		done:    make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.info.ConnID }

func (c *Conn) Info() ConnInfo { return c.info }

// Events is the subscription channel for room events.
func (c *Conn) Events() <-chan models.Event { return c.events }

func (c *Conn) Replies() <-chan Reply { return c.replies }

func (c *Conn) Done() <-chan struct{} { return c.done }

// Deliver enqueues evt without blocking.
func (c *Conn) Deliver(evt models.Event) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.events <- evt:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Reply enqueues an answer for the acting client without blocking.
func (c *Conn) Reply(r Reply) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	r.Type = "ack"
	select {
	case c.replies <- r:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close marks the connection dead. Safe to call more than once.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
}

func (c *Conn) Closed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}
