package parser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Jackyzaz/motegao/internal/domain"
)

// feedAll runs every line through p and returns the final state, or the
// first terminal error.
func feedAll(t *testing.T, p Parser, lines []string) (State, []float64, error) {
	t.Helper()
	var (
		st        State
		published []float64
	)
	for _, line := range lines {
		next, changed, err := p.Feed(st, line)
		if err != nil {
			return st, published, err
		}
		st = next
		if changed {
			published = append(published, st.Progress)
		}
	}
	return p.Finish(st), published, nil
}

func TestFor(t *testing.T) {
	for _, kind := range []domain.JobKind{domain.KindPing, domain.KindPortScan, domain.KindSubdomainEnum, domain.KindPathEnum} {
		p, err := For(kind)
		require.NoError(t, err, kind)
		require.NotNil(t, p)
	}
	_, err := For("whois")
	require.Error(t, err)
}

func TestRawParser(t *testing.T) {
	lines := []string{
		"PING 10.0.0.1 (10.0.0.1) 56(84) bytes of data.",
		"64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=0.05 ms",
		"",
		"--- 10.0.0.1 ping statistics ---",
	}
	st, published, err := feedAll(t, RawParser{}, lines)
	require.NoError(t, err)
	require.Empty(t, published)
	require.Equal(t, 100.0, st.Progress)
	require.Equal(t, "PING 10.0.0.1 (10.0.0.1) 56(84) bytes of data.\n64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=0.05 ms\n\n--- 10.0.0.1 ping statistics ---", st.Result.Output)
}

func TestRawParser_SnapshotBeforeFinish(t *testing.T) {
	var st State
	for _, line := range []string{"Starting Nmap 7.94", "22/tcp open ssh"} {
		st, _, _ = RawParser{}.Feed(st, line)
	}
	require.Empty(t, st.Result.Output)
	require.Equal(t, "Starting Nmap 7.94\n22/tcp open ssh", st.Snapshot().Output)
	require.Equal(t, "", State{}.Snapshot().Output)
}

func TestParseProgress(t *testing.T) {
	tests := []struct {
		line    string
		want    float64
		wantErr bool
	}{
		{"Progress: (45.20%)", 45.20, false},
		{"Progress: 1000 / 4989 (20.04%)", 20.04, false},
		{"\rProgress: 4989 / 4989 (100.00%)", 100, false},
		{"Progress: 12 / 50 (abc%)", 0, true},
		{"Progress: 12 / 50", 0, true},
		{"Progress: (12.5", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseProgress(tt.line)
			if tt.wantErr {
				var fault *domain.ParseFaultError
				require.ErrorAs(t, err, &fault)
				require.Equal(t, tt.line, fault.Line)
				return
			}
			require.NoError(t, err)
			require.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSubdomainEnum_ProgressLine(t *testing.T) {
	p := SubdomainEnumParser{}
	start := State{Result: domain.JobResult{Subdomains: []string{"a.example.com"}}}

	next, changed, err := p.Feed(start, "Progress: (45.20%)")
	require.NoError(t, err)
	require.True(t, changed)
	require.InDelta(t, 45.20, next.Progress, 1e-9)
	require.Equal(t, []string{"a.example.com"}, next.Result.Subdomains)
}

func TestSubdomainEnum_FoundLine(t *testing.T) {
	p := SubdomainEnumParser{}

	next, changed, err := p.Feed(State{Progress: 10}, "Found: sub.example.com")
	require.NoError(t, err)
	require.True(t, changed)
	require.Equal(t, []string{"sub.example.com"}, next.Result.Subdomains)
	require.Equal(t, 10.0, next.Progress)
}

func TestSubdomainEnum_FullRun(t *testing.T) {
	lines := []string{
		"===============================================================",
		"Gobuster v3.6",
		"===============================================================",
		"[+] Domain:     example.com",
		"Found: www.example.com",
		"Progress: 10 / 100 (10.00%)",
		"Found: mail.example.com",
		"Found: www.example.com",
		"Progress: 5 / 100 (5.00%)",
		"Progress: 60 / 100 (60.00%)",
		"Finished",
	}
	st, published, err := feedAll(t, SubdomainEnumParser{}, lines)
	require.NoError(t, err)
	require.Equal(t, []string{"www.example.com", "mail.example.com", "www.example.com"}, st.Result.Subdomains)
	require.Equal(t, 100.0, st.Progress)
	require.IsNonDecreasing(t, published)
}

func TestSubdomainEnum_MalformedProgressIsFault(t *testing.T) {
	_, _, err := SubdomainEnumParser{}.Feed(State{}, "Progress: 1 / 2 (x.y%)")
	var fault *domain.ParseFaultError
	require.True(t, errors.As(err, &fault))
	require.Contains(t, fault.Error(), "x.y%")
}

var pathEnumBanner = []string{
	"===============================================================",
	"Gobuster v3.6",
	"by OJ Reeves (@TheColonial) & Christian Mehlmauer (@firefart)",
	"===============================================================",
	"[+] Url:                     https://example.com",
	"[+] Negative Status codes:   404",
	"===============================================================",
	"Starting gobuster in directory enumeration mode",
	"===============================================================",
}

func TestPathEnum_IgnoresBanner(t *testing.T) {
	p := PathEnumParser{}
	// Slashes and the word Error inside the banner must not count.
	lines := append([]string{"/decoy (Status: 200) [Size: 1]", "Error: not yet"}, pathEnumBanner...)

	st, published, err := feedAll(t, p, lines)
	require.NoError(t, err)
	require.Empty(t, published)
	require.Empty(t, st.Result.Paths)
}

func TestPathEnum_RunsAreIndependent(t *testing.T) {
	p := PathEnumParser{}
	_, _, err := feedAll(t, p, pathEnumBanner)
	require.NoError(t, err)

	// A fresh state starts back inside the banner.
	st, changed, err := p.Feed(State{}, "/decoy (Status: 200) [Size: 1]")
	require.NoError(t, err)
	require.False(t, changed)
	require.Empty(t, st.Result.Paths)

	via, err := For(domain.KindPathEnum)
	require.NoError(t, err)
	first, _, err := feedAll(t, via, append(append([]string{}, pathEnumBanner...), "/a (Status: 200) [Size: 1]"))
	require.NoError(t, err)
	second, _, err := feedAll(t, via, append(append([]string{}, pathEnumBanner...), "/a (Status: 200) [Size: 1]"))
	require.NoError(t, err)
	require.Equal(t, first.Result.Paths, second.Result.Paths)
}

func TestPathEnum_ResultRow(t *testing.T) {
	p := PathEnumParser{}
	lines := append(append([]string{}, pathEnumBanner...),
		"/admin (Status: 200) [Size: 1234]",
		"\x1b[2K/images               (Status: 301) [Size: 178] [--> https://example.com/images/]",
		"Progress: 2000 / 4727 (42.31%)",
		"/server-status        (Status: 403) [Size: 277]",
	)

	st, published, err := feedAll(t, p, lines)
	require.NoError(t, err)
	require.Equal(t, []domain.PathResult{
		{Path: "admin", StatusCode: "200", Size: "1234"},
		{Path: "images", StatusCode: "301", Size: "178"},
		{Path: "server-status", StatusCode: "403", Size: "277"},
	}, st.Result.Paths)
	require.Equal(t, 100.0, st.Progress)
	require.Contains(t, published, 42.31)
}

func TestPathEnum_SkipsUnparseableRows(t *testing.T) {
	p := PathEnumParser{}
	lines := append(append([]string{}, pathEnumBanner...),
		"/short (Status: 200)",
		"/weird (Status: abc) [Size: 10]",
		"/ok (Status: 204) [Size: 0]",
	)

	st, _, err := feedAll(t, p, lines)
	require.NoError(t, err)
	require.Equal(t, []domain.PathResult{{Path: "ok", StatusCode: "204", Size: "0"}}, st.Result.Paths)
}

func TestPathEnum_ErrorLineIsFault(t *testing.T) {
	p := PathEnumParser{}
	lines := append(append([]string{}, pathEnumBanner...),
		"/admin (Status: 200) [Size: 1234]",
		`Error: error on running gobuster: unable to connect to https://example.com/: dial tcp: lookup example.com: no such host`,
		"/never (Status: 200) [Size: 1]",
	)

	st, _, err := feedAll(t, p, lines)
	var fault *domain.ParseFaultError
	require.ErrorAs(t, err, &fault)
	require.Contains(t, fault.Line, "unable to connect")
	// Partial results gathered before the fault are kept.
	require.Len(t, st.Result.Paths, 1)
}

func TestIsSeparator(t *testing.T) {
	require.True(t, isSeparator("----------"))
	require.True(t, isSeparator("==============================================================="))
	require.True(t, isSeparator("  ----------------  "))
	require.False(t, isSeparator("-----"))
	require.False(t, isSeparator("-----=====-----"))
	require.False(t, isSeparator(""))
}

func TestAdvance_ClampsAndNeverDecreases(t *testing.T) {
	st, changed := advance(State{Progress: 50}, 40)
	require.False(t, changed)
	require.Equal(t, 50.0, st.Progress)

	st, changed = advance(st, 250)
	require.True(t, changed)
	require.Equal(t, 100.0, st.Progress)
}
