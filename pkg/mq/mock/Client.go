// Package mock provides a recording implementation of mq.ClientInterface for tests.
package mock

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Smehapavi/AgriNex/pkg/mq"
)

// MockClient records calls and returns configured results.
type MockClient struct {
	mu sync.Mutex

	// PushFunc is called when Push is invoked. If nil, returns PushError.
	PushFunc func(ctx context.Context, msgType string, body []byte) error
	// PushError is returned by Push if PushFunc is nil.
	PushError error
	// PushCalls tracks all calls to Push.
	PushCalls []PushCall

	// UnsafePushError is returned by UnsafePush.
	UnsafePushError error
	// UnsafePushCalls tracks all calls to UnsafePush.
	UnsafePushCalls []PushCall

	// ConsumeFunc is called when Consume is invoked. If nil, returns ConsumeChannel and ConsumeError.
	ConsumeFunc func() (<-chan amqp.Delivery, error)
	// ConsumeChannel is returned by Consume if ConsumeFunc is nil.
	ConsumeChannel <-chan amqp.Delivery
	// ConsumeError is returned by Consume if ConsumeFunc is nil.
	ConsumeError error
	// ConsumeCalls counts calls to Consume.
	ConsumeCalls int

	// NotReady makes Ready report false.
	NotReady bool

	// CloseError is returned by Close.
	CloseError error
	// CloseCalls counts calls to Close.
	CloseCalls int
}

// PushCall records the arguments of a Push or UnsafePush call.
type PushCall struct {
	Ctx  context.Context
	Type string
	Body []byte
}

// NewMockClient creates a MockClient that succeeds on every call.
func NewMockClient() *MockClient {
	return &MockClient{
		PushCalls:       make([]PushCall, 0),
		UnsafePushCalls: make([]PushCall, 0),
		ConsumeChannel:  make(chan amqp.Delivery),
	}
}

// Push implements mq.ClientInterface.
func (m *MockClient) Push(ctx context.Context, msgType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = append(m.PushCalls, PushCall{Ctx: ctx, Type: msgType, Body: body})

	if m.PushFunc != nil {
		return m.PushFunc(ctx, msgType, body)
	}
	return m.PushError
}

// UnsafePush implements mq.ClientInterface.
func (m *MockClient) UnsafePush(ctx context.Context, msgType string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnsafePushCalls = append(m.UnsafePushCalls, PushCall{Ctx: ctx, Type: msgType, Body: body})
	return m.UnsafePushError
}

// Consume implements mq.ClientInterface.
func (m *MockClient) Consume() (<-chan amqp.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ConsumeCalls++

	if m.ConsumeFunc != nil {
		return m.ConsumeFunc()
	}
	return m.ConsumeChannel, m.ConsumeError
}

// Ready implements mq.ClientInterface.
func (m *MockClient) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.NotReady
}

// Close implements mq.ClientInterface.
func (m *MockClient) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CloseCalls++
	return m.CloseError
}

// Pushed returns a copy of the recorded Push calls.
func (m *MockClient) Pushed() []PushCall {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PushCall, len(m.PushCalls))
	copy(out, m.PushCalls)
	return out
}

// ConsumeCount returns how many times Consume was called.
func (m *MockClient) ConsumeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ConsumeCalls
}

// Reset clears all recorded calls.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PushCalls = make([]PushCall, 0)
	m.UnsafePushCalls = make([]PushCall, 0)
	m.ConsumeCalls = 0
	m.CloseCalls = 0
}

var _ mq.ClientInterface = (*MockClient)(nil)
