package parser

import "strings"

// SubdomainEnumParser reads `gobuster dns` output.
type SubdomainEnumParser struct{}

func (SubdomainEnumParser) Feed(state State, line string) (State, bool, error) {
	switch {
	case strings.Contains(line, "Progress"):
		v, err := parseProgress(line)
		if err != nil {
			return state, false, err
		}
		next, changed := advance(state, v)
		return next, changed, nil

	case strings.Contains(line, "Found:"):
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return state, false, nil
		}
		state.Result.Subdomains = append(state.Result.Subdomains, fields[1])
		return state, true, nil
	}
	return state, false, nil
}

func (SubdomainEnumParser) Finish(state State) State {
	return finish(state)
}
