package cfddns_test

import (
	"context"
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cfddns"
)

type syncCall struct {
	zone string
	name string
	addr netip.Addr
}

type fakeProvider struct {
	result cfddns.Result
	err    error
	calls  []syncCall
}

func (p *fakeProvider) SyncRecords(ctx context.Context, zone string, name string, addr netip.Addr) (cfddns.Result, error) {
	p.calls = append(p.calls, syncCall{zone: zone, name: name, addr: addr})
	return p.result, p.err
}

func TestNewValidation(t *testing.T) {
	_, err := cfddns.New("", "home.example.com", cfddns.UsingProvider(&fakeProvider{}))
	assert.ErrorIs(t, err, cfddns.ErrMissingZone)

	_, err = cfddns.New("example.com", "", cfddns.UsingProvider(&fakeProvider{}))
	assert.ErrorIs(t, err, cfddns.ErrMissingRecordName)

	_, err = cfddns.New("example.com", "home.example.com")
	assert.Error(t, err, "a provider must be registered")

	_, err = cfddns.New("example.com", "home.example.com", cfddns.UsingCloudflare(""))
	assert.ErrorIs(t, err, cfddns.ErrMissingToken)
}

func TestClientRun(t *testing.T) {
	provider := &fakeProvider{result: cfddns.Result{
		Addr:    netip.MustParseAddr("192.0.2.10"),
		Matched: 1,
		Updated: 1,
	}}
	client, err := cfddns.New("example.com", "home.example.com",
		cfddns.UsingProvider(provider),
		cfddns.UsingResolver(cfddns.FromString("192.0.2.10")),
	)
	require.NoError(t, err)

	result, err := client.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)

	require.Len(t, provider.calls, 1)
	assert.Equal(t, "example.com", provider.calls[0].zone)
	assert.Equal(t, "home.example.com", provider.calls[0].name)
	assert.Equal(t, netip.MustParseAddr("192.0.2.10"), provider.calls[0].addr)
}

func TestClientRunResolverError(t *testing.T) {
	provider := &fakeProvider{}
	resolveErr := errors.New("echo service unreachable")
	client, err := cfddns.New("example.com", "home.example.com",
		cfddns.UsingProvider(provider),
		cfddns.UsingResolver(cfddns.ResolverFunc(func(context.Context) (netip.Addr, error) {
			return netip.Addr{}, resolveErr
		})),
	)
	require.NoError(t, err)

	_, err = client.Run(context.Background())
	assert.ErrorIs(t, err, resolveErr)
	assert.Empty(t, provider.calls, "provider must not be called when resolution fails")
}

func TestClientRunProviderError(t *testing.T) {
	provider := &fakeProvider{err: errors.New("api unavailable")}
	client, err := cfddns.New("example.com", "home.example.com",
		cfddns.UsingProvider(provider),
		cfddns.UsingResolver(cfddns.FromString("192.0.2.10")),
	)
	require.NoError(t, err)

	_, err = client.Run(context.Background())
	assert.ErrorIs(t, err, provider.err)
}

func TestFromStringInvalid(t *testing.T) {
	_, err := cfddns.FromString("not-an-address").Resolve(context.Background())
	assert.Error(t, err)
}

func TestResultUpToDate(t *testing.T) {
	tests := []struct {
		name   string
		result cfddns.Result
		want   bool
	}{
		{"all current", cfddns.Result{Matched: 2, Current: 2}, true},
		{"one stale", cfddns.Result{Matched: 2, Current: 1, Updated: 1}, false},
		{"no records", cfddns.Result{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.result.UpToDate())
		})
	}
}
