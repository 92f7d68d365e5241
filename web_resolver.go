package cfddns

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"
)

// DefaultIPEchoService is queried when no service URLs are configured.
const DefaultIPEchoService = "https://api.ipify.org"

// WebResolver constructs a resolver which uses external web services to look up the public IP address.
//
// Each serviceURL must speak http and return status "200 OK",
// with a valid IPv4 or IPv6 address as the first line of the response body.
// All other responses are considered an error.
//
// If one serviceURL is given (or none, in which case api.ipify.org is used),
// the resolver simply returns that service's answer.
// If multiple are given,
// the resolver queries up to three of them concurrently and only returns
// successfully when the first two non-error responses agreed on the address.
// Agreement guards against stale caches and a single misbehaving service,
// which matters when the answer controls DNS records.
func WebResolver(serviceURL ...string) Resolver {
	if len(serviceURL) == 0 {
		serviceURL = []string{DefaultIPEchoService}
	}
	return &webResolver{serviceURLs: serviceURL}
}

type webResolver struct {
	httpClient  *http.Client
	serviceURLs []string
}

// Resolve implements Resolver.
func (wr *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(wr.serviceURLs) == 1 {
		return wr.lookup(ctx, wr.serviceURLs[0])
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type lookupResult struct {
		addr netip.Addr
		err  error
	}

	queries := len(wr.serviceURLs)
	if queries > 3 {
		queries = 3
	}
	results := make(chan lookupResult, queries)

	var wg sync.WaitGroup
	wg.Add(queries)
	for i := 0; i < queries; i++ {
		u := wr.serviceURLs[i]
		go func() {
			defer wg.Done()
			r := lookupResult{}
			r.addr, r.err = wr.lookup(ctx, u)

			select {
			case results <- r:
			default:
			}
		}()
	}
	go func() { wg.Wait(); close(results) }()

	answers := 0
	var errs []error
	var addr netip.Addr
	for r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		answers++
		if !addr.IsValid() {
			addr = r.addr
			continue
		}
		if addr == r.addr {
			return addr, nil
		}
	}
	if answers < 2 {
		return netip.Addr{}, fmt.Errorf("not enough IP echo services responded without errors: %w", errors.Join(errs...))
	}
	return netip.Addr{}, errors.New("IP echo services did not agree on our address")
}

func (wr *webResolver) lookup(ctx context.Context, serviceURL string) (netip.Addr, error) {
	// 15 seconds is an eternity for the size of the request we're making,
	// but this ensures that all calls to Resolve eventually complete even if
	// the caller supplied context.Background and http.DefaultClient (with no timeout).
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serviceURL, nil)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	httpclient := wr.httpClient
	if httpclient == nil {
		httpclient = http.DefaultClient
	}

	resp, err := httpclient.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return netip.Addr{}, fmt.Errorf("http request returned %s", resp.Status)
	}

	reader := bufio.NewReader(resp.Body)
	line, _ := reader.ReadString('\n')
	addr, err := netip.ParseAddr(strings.TrimSpace(line))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing IP address from response body: %w", err)
	}
	return addr, nil
}
