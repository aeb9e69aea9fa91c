package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
)

// ErrQueueFull is returned when a job cannot be queued without blocking.
var ErrQueueFull = errors.New("notification queue is full")

// Notifier delivers data payloads to device push tokens. Delivery is fire-and-forget:
// a nil error only means the message was accepted for sending.
type Notifier interface {
	SendToMany(ctx context.Context, tokens []string, data map[string]string) error
	SendToOne(ctx context.Context, token string, data map[string]string) error
}

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

type job struct {
	tokens  []string
	payload []byte
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan job
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool. queueSize bounds the number of pending jobs.
func NewWorkerPool(size, queueSize int, webpushOptions *webpush.Options) *WorkerPool {
	if size < 1 {
		size = 1
	}
	if queueSize < 1 {
		queueSize = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan job, queueSize),
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case j := <-wp.jobs:
			for _, token := range j.tokens {
				wp.sendNotification(token, j.payload)
			}
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// SendToMany queues one payload for every token.
func (wp *WorkerPool) SendToMany(ctx context.Context, tokens []string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode notification payload: %w", err)
	}

	j := job{tokens: append([]string(nil), tokens...), payload: payload}
	select {
	case wp.jobs <- j:
		return nil
	default:
		return fmt.Errorf("dropping notification for %d tokens: %w", len(tokens), ErrQueueFull)
	}
}

// SendToOne queues a payload for a single token.
func (wp *WorkerPool) SendToOne(ctx context.Context, token string, data map[string]string) error {
	if token == "" {
		return nil
	}
	return wp.SendToMany(ctx, []string{token}, data)
}

// sendNotification sends a single web push notification. Tokens are JSON-encoded
// push subscriptions as produced by PushManager.subscribe().
func (wp *WorkerPool) sendNotification(token string, payload []byte) {
	sub := &webpush.Subscription{}
	if err := json.Unmarshal([]byte(token), sub); err != nil || sub.Endpoint == "" {
		log.Printf("Skipping malformed push token (%d bytes): %v", len(token), err)
		return
	}

	resp, err := wp.sender.Send(payload, sub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		// Devices are never removed here; the owner re-registers with a fresh token.
		log.Printf("Push subscription for endpoint %s is expired (status %d)", sub.Endpoint, resp.StatusCode)
	case resp.StatusCode >= 400:
		log.Printf("Push service rejected notification to %s with status %d", sub.Endpoint, resp.StatusCode)
	}
}

var _ Notifier = (*WorkerPool)(nil)
