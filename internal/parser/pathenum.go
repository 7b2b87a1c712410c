package parser

import (
	"strconv"
	"strings"

	"github.com/Jackyzaz/motegao/internal/domain"
)

// bannerSeparators is how many separator rows gobuster dir prints before
// results start.
const bannerSeparators = 4

// minSeparatorLen keeps short dashed lines in results from counting.
const minSeparatorLen = 10

// PathEnumParser reads `gobuster dir` output. Lines before the last banner
// separator are ignored.
type PathEnumParser struct{}

func (PathEnumParser) Feed(state State, line string) (State, bool, error) {
	if state.separators < bannerSeparators {
		if isSeparator(line) {
			state.separators++
		}
		return state, false, nil
	}

	switch {
	case strings.Contains(line, "Error"):
		return state, false, &domain.ParseFaultError{Line: strings.TrimSpace(line)}

	case strings.Contains(line, "Progress"):
		v, err := parseProgress(line)
		if err != nil {
			return state, false, err
		}
		next, changed := advance(state, v)
		return next, changed, nil

	case strings.Contains(line, "/"):
		row, ok := parseRow(line)
		if !ok {
			return state, false, nil
		}
		state.Result.Paths = append(state.Result.Paths, row)
		return state, true, nil
	}
	return state, false, nil
}

func (PathEnumParser) Finish(state State) State {
	return finish(state)
}

func isSeparator(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < minSeparatorLen {
		return false
	}
	c := line[0]
	if c != '-' && c != '=' {
		return false
	}
	return strings.Count(line, string(c)) == len(line)
}

// parseRow splits a result line such as
//
//	/admin                (Status: 200) [Size: 1234]
//
// into its path, status code and size columns.
func parseRow(line string) (domain.PathResult, bool) {
	cols := strings.Fields(stripEscapes(line))
	if len(cols) < 5 {
		return domain.PathResult{}, false
	}
	status := strings.TrimSuffix(cols[2], ")")
	if _, err := strconv.Atoi(status); err != nil {
		return domain.PathResult{}, false
	}
	return domain.PathResult{
		Path:       strings.TrimPrefix(cols[0], "/"),
		StatusCode: status,
		Size:       strings.TrimSuffix(cols[4], "]"),
	}, true
}

// stripEscapes removes ANSI CSI sequences (gobuster prefixes rows with an
// erase-line code when writing to a terminal).
func stripEscapes(s string) string {
	if !strings.Contains(s, "\x1b[") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 0x40 || s[j] > 0x7e) {
				j++
			}
			i = j
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
