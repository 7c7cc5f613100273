package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubClient is a scriptable backend for registry tests.
type stubClient struct {
	provider   Provider
	configured bool
	responses  []stubResponse
	calls      int
}

type stubResponse struct {
	resp *Response
	err  error
}

func (s *stubClient) Complete(ctx context.Context, messages []Message) (*Response, error) {
	idx := s.calls
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	s.calls++
	r := s.responses[idx]
	return r.resp, r.err
}

func (s *stubClient) Provider() Provider { return s.provider }
func (s *stubClient) Model() string      { return "stub" }
func (s *stubClient) Configured() bool   { return s.configured }

func ok(content string) stubResponse {
	return stubResponse{resp: &Response{Content: content}}
}

func transient(p Provider) stubResponse {
	return stubResponse{err: &BackendError{Provider: p, Status: 429, Transient: true}}
}

func permanent(p Provider) stubResponse {
	return stubResponse{err: &BackendError{Provider: p, Status: 401, Message: "bad key"}}
}

// fakeClock is a controllable time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry(clock *fakeClock, clients ...Client) *Registry {
	return NewRegistry(clients,
		WithClock(clock.Now),
		WithCooldown(time.Second, time.Minute),
	)
}

func TestRegistry_FirstConfiguredWins(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	first := &stubClient{provider: ProviderAnthropic, configured: true, responses: []stubResponse{ok("a")}}
	second := &stubClient{provider: ProviderOpenAI, configured: true, responses: []stubResponse{ok("b")}}

	reg := newTestRegistry(clock, first, second)
	resp, err := reg.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "a", resp.Content)
	assert.Equal(t, 0, second.calls)
}

func TestRegistry_SkipsUnconfigured(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	first := &stubClient{provider: ProviderAnthropic, configured: false, responses: []stubResponse{ok("a")}}
	second := &stubClient{provider: ProviderOpenAI, configured: true, responses: []stubResponse{ok("b")}}

	reg := newTestRegistry(clock, first, second)
	resp, err := reg.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "b", resp.Content)
	assert.Equal(t, 0, first.calls)
}

func TestRegistry_TransientFailsOver(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	first := &stubClient{provider: ProviderAnthropic, configured: true, responses: []stubResponse{transient(ProviderAnthropic)}}
	second := &stubClient{provider: ProviderOpenAI, configured: true, responses: []stubResponse{ok("fallback")}}

	reg := newTestRegistry(clock, first, second)
	resp, err := reg.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Content)
}

func TestRegistry_PermanentPropagatesWithoutFailover(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	first := &stubClient{provider: ProviderAnthropic, configured: true, responses: []stubResponse{permanent(ProviderAnthropic)}}
	second := &stubClient{provider: ProviderOpenAI, configured: true, responses: []stubResponse{ok("never")}}

	reg := newTestRegistry(clock, first, second)
	_, err := reg.Complete(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 0, second.calls, "permanent failure must not fail over")

	// The breaker must not have tripped either.
	assert.True(t, reg.Health()[ProviderAnthropic].CooldownUntil.IsZero())
}

func TestRegistry_BreakerExcludesUntilCooldownElapses(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	flaky := &stubClient{provider: ProviderAnthropic, configured: true, responses: []stubResponse{
		transient(ProviderAnthropic),
		ok("recovered"),
	}}

	reg := newTestRegistry(clock, flaky)

	_, err := reg.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
	assert.Equal(t, 1, flaky.calls)

	// Still cooling: the backend is skipped without being called.
	_, err = reg.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
	assert.Equal(t, 1, flaky.calls)

	// After the base cooldown, the call goes through and resets the breaker.
	clock.Advance(time.Second + time.Millisecond)
	resp, err := reg.Complete(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)

	h := reg.Health()[ProviderAnthropic]
	assert.Equal(t, 0, h.Failures)
	assert.True(t, h.CooldownUntil.IsZero())
}

func TestRegistry_CooldownGrowsExponentiallyToCeiling(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	failing := &stubClient{provider: ProviderAnthropic, configured: true, responses: []stubResponse{
		transient(ProviderAnthropic),
	}}

	reg := newTestRegistry(clock, failing)

	// base=1s, ceiling=1m: expect 1s, 2s, 4s, ... capped at 60s.
	expected := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 32 * time.Second, time.Minute, time.Minute}

	for i, want := range expected {
		_, err := reg.Complete(context.Background(), nil)
		assert.ErrorIs(t, err, ErrNoBackendAvailable)

		h := reg.Health()[ProviderAnthropic]
		assert.Equal(t, i+1, h.Failures)
		assert.Equal(t, clock.Now().Add(want), h.CooldownUntil, "failure %d", i+1)

		clock.Advance(want + time.Millisecond)
	}
}

func TestRegistry_AllUnconfigured(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	reg := newTestRegistry(clock,
		&stubClient{provider: ProviderAnthropic, responses: []stubResponse{ok("x")}},
	)

	_, err := reg.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoBackendAvailable)
}

func TestNewClient_KnownProviders(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "google"} {
		c, err := NewClient(name, "some-model", "key")
		require.NoError(t, err)
		assert.Equal(t, Provider(name), c.Provider())
		assert.True(t, c.Configured())
	}
}

func TestNewClient_Unknown(t *testing.T) {
	_, err := NewClient("mystery", "m", "k")
	assert.Error(t, err)
}

func TestNewClient_EmptyKeyUnconfigured(t *testing.T) {
	c, err := NewClient("openai", "gpt-4o", "")
	require.NoError(t, err)
	assert.False(t, c.Configured())
}
