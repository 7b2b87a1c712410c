package domain

import (
	"net/url"
	"regexp"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/net/publicsuffix"
)

const maxHostLen = 253

var domainPattern = regexp.MustCompile(
	`^(?i)[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?(?:\.[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?)+$`,
)

// NewJobSpec turns a boundary request into a validated JobSpec, applying the
// documented defaults. Any failure wraps ErrInvalidSpec.
func NewJobSpec(req *SubmitRequest) (JobSpec, error) {
	if req == nil {
		return JobSpec{}, invalidf("empty request")
	}

	spec := JobSpec{Kind: req.Kind}
	switch req.Kind {
	case KindPing:
		if req.Ping == nil {
			return JobSpec{}, invalidf("missing ping payload")
		}
		spec.Ping = &PingSpec{Host: strings.TrimSpace(req.Ping.Host)}

	case KindPortScan:
		r := req.PortScan
		if r == nil {
			return JobSpec{}, invalidf("missing port scan payload")
		}
		spec.PortScan = &PortScanSpec{
			Host:           strings.TrimSpace(r.Host),
			TimingTemplate: intOr(r.TimingTemplate, DefaultTimingTemplate),
			Options:        slices.Clone(r.Options),
			AllPorts:       r.AllPorts,
			PortsRange:     slices.Clone(r.PortsRange),
			PortsSpecific:  slices.Clone(r.PortsSpecific),
		}

	case KindSubdomainEnum:
		r := req.SubdomainEnum
		if r == nil {
			return JobSpec{}, invalidf("missing subdomain enumeration payload")
		}
		spec.SubdomainEnum = &SubdomainEnumSpec{
			Domain:   strings.ToLower(strings.TrimSpace(r.Domain)),
			Threads:  intOr(r.Threads, DefaultThreads),
			Wordlist: intOr(r.Wordlist, DefaultWordlist),
		}

	case KindPathEnum:
		r := req.PathEnum
		if r == nil {
			return JobSpec{}, invalidf("missing path enumeration payload")
		}
		exclude := dedupe(r.ExcludeStatus)
		if len(exclude) == 0 {
			exclude = slices.Clone(DefaultExcludeStatus)
		}
		spec.PathEnum = &PathEnumSpec{
			URL:           strings.TrimSpace(r.URL),
			Threads:       intOr(r.Threads, DefaultThreads),
			Wordlist:      intOr(r.Wordlist, DefaultWordlist),
			ExcludeStatus: exclude,
		}

	default:
		return JobSpec{}, invalidf("unsupported job kind %q", req.Kind)
	}

	if err := spec.Validate(); err != nil {
		return JobSpec{}, err
	}
	return spec, nil
}

// Validate checks every rule for the job payload. It is also run by the worker on
// specs received from the queue.
func (s JobSpec) Validate() error {
	set := 0
	for _, p := range []bool{s.Ping != nil, s.PortScan != nil, s.SubdomainEnum != nil, s.PathEnum != nil} {
		if p {
			set++
		}
	}
	if set != 1 {
		return invalidf("exactly one payload must be set, got %d", set)
	}

	switch s.Kind {
	case KindPing:
		if s.Ping == nil {
			return invalidf("payload does not match kind %q", s.Kind)
		}
		return validateHost(s.Ping.Host)
	case KindPortScan:
		if s.PortScan == nil {
			return invalidf("payload does not match kind %q", s.Kind)
		}
		return s.PortScan.validate()
	case KindSubdomainEnum:
		if s.SubdomainEnum == nil {
			return invalidf("payload does not match kind %q", s.Kind)
		}
		return s.SubdomainEnum.validate()
	case KindPathEnum:
		if s.PathEnum == nil {
			return invalidf("payload does not match kind %q", s.Kind)
		}
		return s.PathEnum.validate()
	}
	return invalidf("unsupported job kind %q", s.Kind)
}

func (p *PortScanSpec) validate() error {
	if err := validateHost(p.Host); err != nil {
		return err
	}
	if p.TimingTemplate < 0 || p.TimingTemplate > 5 {
		return invalidf("timing_template must be between 0 and 5, got %d", p.TimingTemplate)
	}
	for _, opt := range p.Options {
		if !slices.Contains(AllowedScanOptions, opt) {
			return invalidf("option not allowed: %s", opt)
		}
	}
	if p.AllPorts && (len(p.PortsRange) > 0 || len(p.PortsSpecific) > 0) {
		return invalidf("cannot combine all_ports with specific port selections")
	}
	if len(p.PortsRange) > 0 {
		if len(p.PortsRange) != 2 {
			return invalidf("ports_range must contain exactly 2 values")
		}
		lo, hi := p.PortsRange[0], p.PortsRange[1]
		if !validPort(lo) || !validPort(hi) {
			return invalidf("ports_range values must be between 1 and 65535")
		}
		if lo > hi {
			return invalidf("ports_range start %d is greater than end %d", lo, hi)
		}
	}
	for _, port := range p.PortsSpecific {
		if !validPort(port) {
			return invalidf("port %d out of range", port)
		}
	}
	return nil
}

func (s *SubdomainEnumSpec) validate() error {
	if err := validateDomain(s.Domain); err != nil {
		return err
	}
	if err := validateThreads(s.Threads); err != nil {
		return err
	}
	if s.Wordlist < 1 || s.Wordlist > MaxSubdomainWordlist {
		return invalidf("wordlist must be between 1 and %d, got %d", MaxSubdomainWordlist, s.Wordlist)
	}
	return nil
}

func (p *PathEnumSpec) validate() error {
	u, err := url.Parse(p.URL)
	if err != nil {
		return invalidf("malformed url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return invalidf("url scheme must be http or https")
	}
	if u.Hostname() == "" {
		return invalidf("url must include a host")
	}
	if err := validateThreads(p.Threads); err != nil {
		return err
	}
	if p.Wordlist < 1 || p.Wordlist > MaxPathWordlist {
		return invalidf("wordlist must be between 1 and %d, got %d", MaxPathWordlist, p.Wordlist)
	}
	if len(p.ExcludeStatus) == 0 {
		return invalidf("exclude_status must not be empty")
	}
	for _, code := range p.ExcludeStatus {
		if code < 100 || code > 599 {
			return invalidf("status code %d out of range", code)
		}
	}
	return nil
}

// validateHost rejects anything that could be read as a flag by the tool.
func validateHost(host string) error {
	if host == "" {
		return invalidf("host is required")
	}
	if len(host) > maxHostLen {
		return invalidf("host is too long")
	}
	if strings.HasPrefix(host, "-") {
		return invalidf("host must not start with '-'")
	}
	if strings.IndexFunc(host, unicode.IsSpace) >= 0 {
		return invalidf("host must not contain whitespace")
	}
	return nil
}

func validateDomain(domain string) error {
	if domain == "" {
		return invalidf("domain is required")
	}
	if len(domain) > maxHostLen || !domainPattern.MatchString(domain) {
		return invalidf("invalid domain name: %s", domain)
	}
	if _, err := publicsuffix.EffectiveTLDPlusOne(domain); err != nil {
		return invalidf("domain %s is a public suffix", domain)
	}
	return nil
}

func validateThreads(n int) error {
	if n < 1 || n > MaxThreads {
		return invalidf("threads must be between 1 and %d, got %d", MaxThreads, n)
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

func dedupe(codes []int) []int {
	out := make([]int, 0, len(codes))
	for _, c := range codes {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
