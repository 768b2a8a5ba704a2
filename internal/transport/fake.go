package transport

import (
	"context"
	"sync"
	"time"

	"climate_hub/internal/models"
)

// Test doubles shared by the push, poll and dispatch packages. Kept in
// the real package so tests exercise the same contracts production code
// compiles against.

// FakeAuth hands out canned tokens and counts calls.
type FakeAuth struct {
	mu sync.Mutex

	Tok        Token
	AuthErr    error
	RefreshErr error

	AuthCalls    int
	RefreshCalls int
}

func (f *FakeAuth) Authenticate(ctx context.Context, creds Credentials) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.AuthCalls++
	if f.AuthErr != nil {
		return Token{}, f.AuthErr
	}
	return f.Tok, nil
}

// Calls returns the authenticate and refresh call counts.
func (f *FakeAuth) Calls() (auth, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AuthCalls, f.RefreshCalls
}

func (f *FakeAuth) Refresh(ctx context.Context, tok Token) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RefreshCalls++
	if f.RefreshErr != nil {
		return Token{}, f.RefreshErr
	}
	return f.Tok, nil
}

// FakeStream replays scripted updates and records sent commands.
type FakeStream struct {
	mu sync.Mutex

	Updates      chan Update
	SubscribeErr error
	SendErr      error

	Subscribed [][]string
	Sent       []models.Command
	Closed     bool
}

// NewFakeStream returns a stream with a buffered update queue.
func NewFakeStream() *FakeStream {
	return &FakeStream{Updates: make(chan Update, 16)}
}

func (f *FakeStream) Subscribe(ctx context.Context, deviceIDs []string) error {
	f.mu.Lock()
	f.Subscribed = append(f.Subscribed, deviceIDs)
	f.mu.Unlock()
	return f.SubscribeErr
}

func (f *FakeStream) Next(ctx context.Context) (Update, error) {
	select {
	case <-ctx.Done():
		return Update{}, ctx.Err()
	case upd, ok := <-f.Updates:
		if !ok {
			return Update{}, models.ErrStreamClosed
		}
		if upd.DeviceID == "" && upd.Timestamp.IsZero() {
			// Zero-value update doubles as a scripted stream error.
			return Update{}, models.ErrStreamClosed
		}
		return upd, nil
	}
}

func (f *FakeStream) Send(ctx context.Context, cmd models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, cmd)
	return nil
}

func (f *FakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// SentCommands returns a copy of everything sent over the stream.
func (f *FakeStream) SentCommands() []models.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Command, len(f.Sent))
	copy(out, f.Sent)
	return out
}

// FakeRealtime returns scripted streams (or errors) per connect attempt.
type FakeRealtime struct {
	mu sync.Mutex

	Streams     []*FakeStream
	ConnectErrs []error
	calls       int
}

func (f *FakeRealtime) Connect(ctx context.Context, tok Token) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.ConnectErrs) && f.ConnectErrs[i] != nil {
		return nil, f.ConnectErrs[i]
	}
	if len(f.Streams) == 0 {
		return NewFakeStream(), nil
	}
	if i >= len(f.Streams) {
		return f.Streams[len(f.Streams)-1], nil
	}
	return f.Streams[i], nil
}

// ConnectCalls returns how many times Connect was invoked.
func (f *FakeRealtime) ConnectCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeREST serves snapshots from a map and records commands.
type FakeREST struct {
	mu sync.Mutex

	Devices   map[string]models.Device
	FetchErr  map[string]error
	ListErr   error
	SendErr   error
	FetchWait time.Duration

	Fetches []string
	Sent    []models.Command
}

// NewFakeREST returns an empty REST fake.
func NewFakeREST() *FakeREST {
	return &FakeREST{
		Devices:  make(map[string]models.Device),
		FetchErr: make(map[string]error),
	}
}

func (f *FakeREST) ListDeviceIDs(ctx context.Context, tok Token) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	ids := make([]string, 0, len(f.Devices))
	for id := range f.Devices {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *FakeREST) FetchDevice(ctx context.Context, deviceID string, tok Token) (models.Device, error) {
	f.mu.Lock()
	wait := f.FetchWait
	f.Fetches = append(f.Fetches, deviceID)
	err := f.FetchErr[deviceID]
	dev, ok := f.Devices[deviceID]
	f.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
			return models.Device{}, ctx.Err()
		case <-time.After(wait):
		}
	}
	if err != nil {
		return models.Device{}, err
	}
	if !ok {
		return models.Device{}, models.ErrDeviceNotFound
	}
	return dev.Clone(), nil
}

func (f *FakeREST) SendCommand(ctx context.Context, deviceID string, tok Token, cmd models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return f.SendErr
	}
	f.Sent = append(f.Sent, cmd)
	return nil
}

// FetchCount returns how many fetches were issued for a device.
func (f *FakeREST) FetchCount(deviceID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.Fetches {
		if id == deviceID {
			n++
		}
	}
	return n
}

// SentCommands returns a copy of the commands delivered over REST.
func (f *FakeREST) SentCommands() []models.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Command, len(f.Sent))
	copy(out, f.Sent)
	return out
}

// FakeCatalog serves fixed capabilities.
type FakeCatalog struct {
	Caps map[string]models.Capabilities
	Err  error
}

func (f *FakeCatalog) Capabilities(ctx context.Context, deviceID string) (models.Capabilities, error) {
	if f.Err != nil {
		return models.Capabilities{}, f.Err
	}
	if caps, ok := f.Caps[deviceID]; ok {
		return caps, nil
	}
	return DefaultCapabilities(), nil
}
