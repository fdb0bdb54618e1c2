// Package dns validates discovered domains by resolving them.
package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// ErrTransient wraps resolver failures that say nothing about whether the
// name exists: timeouts, SERVFAIL, refused queries.
var ErrTransient = errors.New("transient dns failure")

const fallbackServer = "1.1.1.1:53"

// Resolver answers whether a name has address records.
type Resolver struct {
	client  *dns.Client
	servers []string
	qtypes  []uint16
}

type ResolverOption func(*Resolver)

func WithServers(servers ...string) ResolverOption {
	return func(r *Resolver) {
		var out []string
		for _, s := range servers {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, _, err := net.SplitHostPort(s); err != nil {
				s = net.JoinHostPort(s, "53")
			}
			out = append(out, s)
		}
		if len(out) > 0 {
			r.servers = out
		}
	}
}

// WithRecordTypes sets the record types queried in order. Unknown names are
// ignored.
func WithRecordTypes(types ...string) ResolverOption {
	return func(r *Resolver) {
		var out []uint16
		for _, t := range types {
			if q, ok := dns.StringToType[strings.ToUpper(strings.TrimSpace(t))]; ok {
				out = append(out, q)
			}
		}
		if len(out) > 0 {
			r.qtypes = out
		}
	}
}

func NewResolver(timeout time.Duration, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		client: &dns.Client{Net: "udp", Timeout: timeout},
		qtypes: []uint16{dns.TypeA, dns.TypeAAAA},
	}
	for _, opt := range opts {
		opt(r)
	}
	if len(r.servers) == 0 {
		r.servers = systemServers()
	}
	return r
}

func systemServers() []string {
	conf, err := dns.ClientConfigFromFile("/etc/resolv.conf")
	if err != nil || len(conf.Servers) == 0 {
		return []string{fallbackServer}
	}
	out := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		out = append(out, net.JoinHostPort(s, conf.Port))
	}
	return out
}

// Resolves reports true once any configured record type has an answer of
// that type. NXDOMAIN is a definitive false. A failed query moves on to the
// next type; the error, wrapping ErrTransient, is returned only when no type
// answered.
func (r *Resolver) Resolves(ctx context.Context, host string) (bool, error) {
	fqdn := dns.Fqdn(strings.ToLower(host))
	var failed error
	for _, qtype := range r.qtypes {
		rcode, answered, err := r.query(ctx, fqdn, qtype)
		if err != nil {
			if ctx.Err() != nil {
				return false, err
			}
			if failed == nil {
				failed = err
			}
			continue
		}
		if answered {
			return true, nil
		}
		if rcode == dns.RcodeNameError {
			return false, nil
		}
	}
	return false, failed
}

func (r *Resolver) query(ctx context.Context, fqdn string, qtype uint16) (int, bool, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(fqdn, qtype)
	msg.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		switch in.Rcode {
		case dns.RcodeSuccess:
			for _, rr := range in.Answer {
				if rr.Header().Rrtype == qtype {
					return in.Rcode, true, nil
				}
			}
			return in.Rcode, false, nil
		case dns.RcodeNameError:
			return in.Rcode, false, nil
		default:
			lastErr = fmt.Errorf("%s %s: %s", dns.TypeToString[qtype], fqdn, dns.RcodeToString[in.Rcode])
		}
	}
	return 0, false, fmt.Errorf("%w: %v", ErrTransient, lastErr)
}
