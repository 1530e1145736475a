package dns

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	gocache "github.com/patrickmn/go-cache"
)

// CachedDNSResolver resolves source ips of report records to host names
type CachedDNSResolver struct {
	timeout  time.Duration
	resolver *net.Resolver
	dnsCache *gocache.Cache
	logger   *log.Logger
}

// NewCachedDNSResolver uses server (host:port) if set, the system resolver
// otherwise. Results are kept for cacheTimeout.
func NewCachedDNSResolver(server string, connectTimeout, timeout, cacheTimeout time.Duration, logger *log.Logger) *CachedDNSResolver {
	resolver := net.DefaultResolver
	if server != "" {
		resolver = &net.Resolver{
			PreferGo: true,
			Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
				d := net.Dialer{
					Timeout: connectTimeout,
				}
				return d.DialContext(ctx, network, server)
			},
		}
	}
	return &CachedDNSResolver{
		timeout:  timeout,
		resolver: resolver,
		dnsCache: gocache.New(cacheTimeout, 2*cacheTimeout),
		logger:   logger,
	}
}

// CachedDNSLookup performs a DNS lookup and caches the result to
// not hammer your DNS server.
func (r *CachedDNSResolver) CachedDNSLookup(ctx context.Context, ip string) ([]string, error) {
	r.logger.Debugf("resolving %s", ip)
	if val, ok := r.getCacheEntry(ip); ok {
		return val, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	domains, err := r.resolver.LookupAddr(ctx, ip)
	if err != nil {
		// store dummy entry so we do not reresolve the ip
		r.updateCache(ip, []string{})
		return nil, err
	}

	// remove trailing dot from domains
	for i := range domains {
		domains[i] = strings.TrimSuffix(domains[i], ".")
	}
	r.updateCache(ip, domains)
	return domains, nil
}

func (r *CachedDNSResolver) updateCache(ip string, domains []string) {
	r.dnsCache.SetDefault(ip, domains)
}

func (r *CachedDNSResolver) getCacheEntry(ip string) ([]string, bool) {
	val, ok := r.dnsCache.Get(ip)
	if !ok {
		return nil, false
	}
	return val.([]string), true
}
