// Package jsonsink ships slog records to a jsonsink server, one record per
// POST, so each record becomes one entry of the server's log file.
package jsonsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

type Options struct {
	ServerURL  string
	Token      string
	Service    string
	SourceHost string
	InstanceID string // generated and persisted when empty
	QueueSize  int    // default 10000
	Level      slog.Leveler
}

// Record is the JSON shape of one shipped log record.
type Record struct {
	Timestamp  int64                  `json:"timestamp"`
	Level      string                 `json:"level"`
	Message    string                 `json:"message"`
	Service    string                 `json:"service"`
	Host       string                 `json:"host"`
	InstanceID string                 `json:"instance_id"`
	Attributes map[string]interface{} `json:"attributes"`
}

// sender owns the queue and the background loop shared by derived handlers.
type sender struct {
	client *Client
	queue  chan []byte
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

type Handler struct {
	opts   Options
	s      *sender
	attrs  []slog.Attr
	groups []string
}

func NewHandler(opts Options) *Handler {
	if opts.SourceHost == "" {
		opts.SourceHost, _ = os.Hostname()
	}
	if opts.InstanceID == "" {
		opts.InstanceID = ensureInstanceID()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 10000
	}

	s := &sender{
		client: NewClient(opts.ServerURL, opts.Token),
		queue:  make(chan []byte, opts.QueueSize),
		done:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.runLoop()

	return &Handler{opts: opts, s: s}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	rec := Record{
		Timestamp:  r.Time.UnixNano(),
		Level:      r.Level.String(),
		Message:    r.Message,
		Service:    h.opts.Service,
		Host:       h.opts.SourceHost,
		InstanceID: h.opts.InstanceID,
		Attributes: make(map[string]interface{}),
	}
	if r.Time.IsZero() {
		rec.Timestamp = time.Now().UnixNano()
	}

	for _, a := range h.attrs {
		rec.Attributes[a.Key] = a.Value.Any()
	}
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attributes[prefix+a.Key] = a.Value.Any()
		return true
	})

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	select {
	case h.s.queue <- data:
	default:
		fmt.Fprintf(os.Stderr, "jsonsink: queue full, dropping log\n")
	}
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h2 := *h
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	h2.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		a.Key = prefix + a.Key
		h2.attrs = append(h2.attrs, a)
	}
	return &h2
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	h2 := *h
	h2.groups = append(append([]string(nil), h.groups...), name)
	return &h2
}

func (s *sender) runLoop() {
	defer s.wg.Done()

	for {
		select {
		case data := <-s.queue:
			s.send(data)
		case <-s.done:
			// Flush remaining
			for {
				select {
				case data := <-s.queue:
					s.send(data)
				default:
					return
				}
			}
		}
	}
}

func (s *sender) send(data []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Send(ctx, data); err != nil {
		fmt.Fprintf(os.Stderr, "jsonsink: %v\n", err)
	}
}

// Shutdown delivers queued records and stops the sender. Records handled
// after Shutdown are dropped.
func (h *Handler) Shutdown() {
	h.s.once.Do(func() { close(h.s.done) })
	h.s.wg.Wait()
}
