package parser

// RawParser collects every line verbatim. Ping and nmap output carry no
// progress this engine tracks, so nothing is published until the end.
type RawParser struct{}

func (RawParser) Feed(state State, line string) (State, bool, error) {
	state.lines = append(state.lines, line)
	return state, false, nil
}

func (RawParser) Finish(state State) State {
	state.Result = state.Snapshot()
	state.lines = nil
	return finish(state)
}
