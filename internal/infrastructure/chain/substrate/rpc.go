package substrate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const jsonRPCVersion = "2.0"

// ErrConnectionClosed is returned by calls made on, or pending when, the
// websocket connection is closed.
var ErrConnectionClosed = errors.New("connection closed")

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("%d: %s: %s", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

type rpcNotificationParams struct {
	Subscription string          `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

// rpcMessage is either a response, when ID is set, or a subscription
// notification, when Method is set.
type rpcMessage struct {
	JSONRPC string                 `json:"jsonrpc"`
	ID      *uint64                `json:"id,omitempty"`
	Result  json.RawMessage        `json:"result,omitempty"`
	Error   *rpcError              `json:"error,omitempty"`
	Method  string                 `json:"method,omitempty"`
	Params  *rpcNotificationParams `json:"params,omitempty"`
}

// rpcConn multiplexes JSON-RPC calls and subscriptions over a single
// websocket connection. A reader goroutine routes responses to the pending
// calls by request id and notifications to the subscriptions by id.
type rpcConn struct {
	ws        *websocket.Conn
	writeLock sync.Mutex
	nextID    uint64

	lock    sync.Mutex
	pending map[uint64]chan *rpcMessage
	subs    map[string]*subscription
	// notifications received before the subscription id is known.
	orphans map[string][]json.RawMessage

	closed    chan struct{}
	closeOnce sync.Once
}

func newRPCConn(ws *websocket.Conn) *rpcConn {
	c := &rpcConn{
		ws:      ws,
		pending: make(map[uint64]chan *rpcMessage),
		subs:    make(map[string]*subscription),
		orphans: make(map[string][]json.RawMessage),
		closed:  make(chan struct{}),
	}
	go c.listen()
	return c
}

// call sends a request and decodes its result into result, if not nil.
func (c *rpcConn) call(
	ctx context.Context, result interface{}, method string, params ...interface{},
) error {
	id := atomic.AddUint64(&c.nextID, 1)
	resCh := make(chan *rpcMessage, 1)

	c.lock.Lock()
	select {
	case <-c.closed:
		c.lock.Unlock()
		return ErrConnectionClosed
	default:
	}
	c.pending[id] = resCh
	c.lock.Unlock()

	defer func() {
		c.lock.Lock()
		delete(c.pending, id)
		c.lock.Unlock()
	}()

	if params == nil {
		params = []interface{}{}
	}
	if err := c.write(rpcRequest{jsonRPCVersion, id, method, params}); err != nil {
		return err
	}

	select {
	case res, ok := <-resCh:
		if !ok {
			return ErrConnectionClosed
		}
		if res.Error != nil {
			return res.Error
		}
		if result == nil {
			return nil
		}
		if err := json.Unmarshal(res.Result, result); err != nil {
			return fmt.Errorf("failed to decode %s result: %w", method, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// subscribe makes a call returning a subscription id and starts routing the
// notifications for such id to the returned subscription.
func (c *rpcConn) subscribe(
	ctx context.Context, method, unsubscribeMethod string, params ...interface{},
) (*subscription, error) {
	var subID string
	if err := c.call(ctx, &subID, method, params...); err != nil {
		return nil, err
	}

	sub := newSubscription(subID, func() {
		c.lock.Lock()
		delete(c.subs, subID)
		c.lock.Unlock()

		// best effort, the node drops the subscription anyway once the
		// extrinsic reaches a final status.
		go func() {
			if err := c.call(
				context.Background(), nil, unsubscribeMethod, subID,
			); err != nil && !errors.Is(err, ErrConnectionClosed) {
				log.WithError(err).Debugf("failed to unsubscribe %s", subID)
			}
		}()
	})

	c.lock.Lock()
	defer c.lock.Unlock()

	select {
	case <-c.closed:
		for _, msg := range c.orphans[subID] {
			sub.push(msg)
		}
		delete(c.orphans, subID)
		sub.end()
		return sub, nil
	default:
	}

	for _, msg := range c.orphans[subID] {
		sub.push(msg)
	}
	delete(c.orphans, subID)
	c.subs[subID] = sub
	return sub, nil
}

func (c *rpcConn) write(req rpcRequest) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	if err := c.ws.WriteJSON(req); err != nil {
		return fmt.Errorf("failed to send %s request: %w", req.Method, err)
	}
	return nil
}

func (c *rpcConn) listen() {
	defer c.shutdown()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) &&
				!errors.Is(err, io.EOF) {
				select {
				case <-c.closed:
				default:
					log.WithError(err).Debug("node connection dropped")
				}
			}
			return
		}

		msg := &rpcMessage{}
		if err := json.Unmarshal(data, msg); err != nil {
			log.WithError(err).Warn("skipping malformed message from node")
			continue
		}
		c.route(msg)
	}
}

func (c *rpcConn) route(msg *rpcMessage) {
	c.lock.Lock()
	defer c.lock.Unlock()

	if msg.ID != nil {
		if resCh, ok := c.pending[*msg.ID]; ok {
			resCh <- msg
		}
		return
	}

	if msg.Params == nil || len(msg.Params.Subscription) <= 0 {
		return
	}
	subID := msg.Params.Subscription
	if sub, ok := c.subs[subID]; ok {
		sub.push(msg.Params.Result)
		return
	}
	c.orphans[subID] = append(c.orphans[subID], msg.Params.Result)
}

func (c *rpcConn) shutdown() {
	c.closeOnce.Do(func() {
		c.lock.Lock()
		defer c.lock.Unlock()

		close(c.closed)
		for id, resCh := range c.pending {
			close(resCh)
			delete(c.pending, id)
		}
		for id, sub := range c.subs {
			sub.end()
			delete(c.subs, id)
		}
	})
}

func (c *rpcConn) close() {
	c.writeLock.Lock()
	//nolint
	c.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	c.writeLock.Unlock()

	c.shutdown()
	c.ws.Close()
}

// subscription is an unbounded, ordered queue of notifications.
type subscription struct {
	id          string
	lock        sync.Mutex
	queue       []json.RawMessage
	ended       bool
	signal      chan struct{}
	unsubscribe func()
	closeOnce   sync.Once
}

func newSubscription(id string, unsubscribe func()) *subscription {
	return &subscription{
		id:          id,
		signal:      make(chan struct{}, 1),
		unsubscribe: unsubscribe,
	}
}

func (s *subscription) push(msg json.RawMessage) {
	s.lock.Lock()
	s.queue = append(s.queue, msg)
	s.lock.Unlock()
	s.wake()
}

func (s *subscription) end() {
	s.lock.Lock()
	s.ended = true
	s.lock.Unlock()
	s.wake()
}

func (s *subscription) wake() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// next returns the oldest queued notification. It returns io.EOF once the
// subscription has ended and the queue is drained.
func (s *subscription) next(ctx context.Context) (json.RawMessage, error) {
	for {
		s.lock.Lock()
		if len(s.queue) > 0 {
			msg := s.queue[0]
			s.queue = s.queue[1:]
			s.lock.Unlock()
			return msg, nil
		}
		ended := s.ended
		s.lock.Unlock()

		if ended {
			return nil, io.EOF
		}

		select {
		case <-s.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *subscription) close() {
	s.closeOnce.Do(func() {
		s.end()
		s.unsubscribe()
	})
}
