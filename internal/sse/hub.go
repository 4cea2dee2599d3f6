// Package sse pushes player snapshots to browsers over Server-Sent Events.
package sse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/vytor/ceplayer/internal/logger"
)

// WriteTimeout bounds a single write so a stale connection cannot stall a publish.
const WriteTimeout = 2 * time.Second

// Client is one connected event stream.
type Client struct {
	ID      string
	Topic   string
	Writer  http.ResponseWriter
	Flusher http.Flusher
	Done    chan struct{}

	mu        sync.Mutex
	closeOnce sync.Once
}

// send writes one message. Nothing is written once the client is closed, so a
// handler that has returned never sees a late write.
func (c *Client) send(message []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.Done:
		return nil
	default:
	}
	if _, err := c.Writer.Write(message); err != nil {
		return err
	}
	c.Flusher.Flush()
	return nil
}

func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.Done) })
}

// Hub fans messages out to the clients subscribed to a topic. Topics are learner IDs.
type Hub struct {
	mu      sync.RWMutex
	topics  map[string]map[string]*Client
	nextID  int
	log     *logger.Logger
	timeout time.Duration
}

func NewHub() *Hub {
	return &Hub{
		topics:  make(map[string]map[string]*Client),
		log:     logger.Default().WithPrefix("sse"),
		timeout: WriteTimeout,
	}
}

// AddClient subscribes w to topic.
func (h *Hub) AddClient(topic string, w http.ResponseWriter) (*Client, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	h.mu.Lock()
	h.nextID++
	c := &Client{
		ID:      fmt.Sprintf("client-%d", h.nextID),
		Topic:   topic,
		Writer:  w,
		Flusher: flusher,
		Done:    make(chan struct{}),
	}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]*Client)
	}
	h.topics[topic][c.ID] = c
	n := len(h.topics[topic])
	h.mu.Unlock()

	h.log.Debug("client %s connected to %s (%d on topic)", c.ID, topic, n)
	return c, nil
}

// RemoveClient unsubscribes c. Removing twice is harmless.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if clients, ok := h.topics[c.Topic]; ok {
		delete(clients, c.ID)
		if len(clients) == 0 {
			delete(h.topics, c.Topic)
		}
	}
	h.mu.Unlock()
	c.close()
	h.log.Debug("client %s disconnected from %s", c.ID, c.Topic)
}

// ClientCount returns the number of clients on topic.
func (h *Hub) ClientCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish sends data as a named event to every client on topic. Clients whose write
// fails or times out are dropped.
func (h *Hub) Publish(topic, event string, data any) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.topics[topic]))
	for _, c := range h.topics[topic] {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	if len(clients) == 0 {
		return
	}

	payload, err := json.Marshal(data)
	if err != nil {
		h.log.Error("failed to marshal %s event: %v", event, err)
		return
	}
	message := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event, payload))

	dead := make(chan *Client, len(clients))
	var wg sync.WaitGroup
	for _, c := range clients {
		select {
		case <-c.Done:
			continue
		default:
		}
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			if !h.write(c, message) {
				dead <- c
			}
		}(c)
	}
	wg.Wait()
	close(dead)

	for c := range dead {
		h.log.Warn("dropping client %s on %s", c.ID, c.Topic)
		h.RemoveClient(c)
	}
}

func (h *Hub) write(c *Client, message []byte) bool {
	done := make(chan bool, 1)
	go func() {
		done <- c.send(message) == nil
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(h.timeout):
		return false
	case <-c.Done:
		return true
	}
}

// Serve streams topic to the request until the client goes away. initial, when
// non-nil, is sent first as a "snapshot" event.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, topic string, initial any) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	c, err := h.AddClient(topic, w)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer func() {
		h.RemoveClient(c)
		c.mu.Lock()
		c.mu.Unlock()
	}()

	hello := fmt.Sprintf("event: connected\ndata: {\"client_id\":%q}\n\n", c.ID)
	if initial != nil {
		if payload, err := json.Marshal(initial); err == nil {
			hello += fmt.Sprintf("event: snapshot\ndata: %s\n\n", payload)
		}
	}
	if err := c.send([]byte(hello)); err != nil {
		return
	}

	select {
	case <-r.Context().Done():
	case <-c.Done:
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	var all []*Client
	for _, clients := range h.topics {
		for _, c := range clients {
			all = append(all, c)
		}
	}
	h.topics = make(map[string]map[string]*Client)
	h.mu.Unlock()
	for _, c := range all {
		c.close()
	}
}
