// Package command maps the flat token surface of the CLI onto typed
// commands. The token grammar is positional and overloaded: the same
// position can hold a host suffix, a relay channel or a duration, so the
// rules below run in a fixed order and the first matching shape wins.
// A shape that matches but fails validation is a syntax violation; there
// is no fall-through and no best-effort recovery.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSyntax is the uniform outcome for every malformed invocation:
// unmatched shape, out-of-range value, bad duration, or an illegal
// open+duration pairing. Wrap with context, test with errors.Is.
var ErrSyntax = errors.New("syntax violation")

const (
	stateOpen   = "open"
	stateClosed = "closed"
)

// Parsed is the result of one Parse call. HostSuffix is non-zero when a
// leading override token redirected the invocation to a sibling module.
type Parsed struct {
	Command    Command
	HostSuffix int
}

type rule func(tokens []string) (Command, bool, error)

// Parse turns the raw argument tokens into exactly one command.
func Parse(tokens []string) (Parsed, error) {
	var out Parsed

	tokens, suffix := takeHostSuffix(tokens)
	out.HostSuffix = suffix

	if len(tokens) == 0 {
		return out, fmt.Errorf("%w: no command", ErrSyntax)
	}

	for _, r := range []rule{
		parseAnalogSingle,
		parseAnalogDual,
		parseDigitalRead,
		parseAllRelays,
		parseRelayPairs,
	} {
		cmd, ok, err := r(tokens)
		if err != nil {
			return out, err
		}
		if ok {
			out.Command = cmd
			return out, nil
		}
	}
	return out, fmt.Errorf("%w: unrecognized command %q", ErrSyntax, strings.Join(tokens, " "))
}

// takeHostSuffix consumes a leading all-digits token (one trailing comma
// tolerated) whose value exceeds the relay range. Values 1..4 are left
// alone: in that position they are indistinguishable from a relay
// channel, and the relay reading wins.
func takeHostSuffix(tokens []string) ([]string, int) {
	if len(tokens) == 0 {
		return tokens, 0
	}
	t := strings.TrimSuffix(tokens[0], ",")
	if !allDigits(t) {
		return tokens, 0
	}
	n, err := strconv.Atoi(t)
	if err != nil || n <= 4 {
		return tokens, 0
	}
	return tokens[1:], n
}

// Rule 2: "ai1 read" / "ai2 read". Commas are never legal here; a
// duration-bearing token in this shape is a violation, not a duration.
func parseAnalogSingle(tokens []string) (Command, bool, error) {
	if len(tokens) != 2 || (tokens[0] != "ai1" && tokens[0] != "ai2") {
		return nil, false, nil
	}
	if tokens[1] != "read" {
		return nil, false, fmt.Errorf("%w: expected 'read' after %q", ErrSyntax, tokens[0])
	}
	ch := int(tokens[0][2] - '0')
	return ReadAnalogInput{Channel: ch}, true, nil
}

// Rule 3: "ai read" reads both analog channels.
func parseAnalogDual(tokens []string) (Command, bool, error) {
	if len(tokens) != 2 || tokens[0] != "ai" {
		return nil, false, nil
	}
	if tokens[1] != "read" {
		return nil, false, fmt.Errorf("%w: expected 'read' after 'ai'", ErrSyntax)
	}
	return ReadAnalogInput{}, true, nil
}

// Rule 4: "di <n> read" with n in 1..4, no commas anywhere.
func parseDigitalRead(tokens []string) (Command, bool, error) {
	if len(tokens) != 3 || tokens[0] != "di" {
		return nil, false, nil
	}
	if tokens[2] != "read" || !allDigits(tokens[1]) {
		return nil, false, fmt.Errorf("%w: digital read is 'di <1-4> read'", ErrSyntax)
	}
	ch, _ := strconv.Atoi(tokens[1])
	if ch < 1 || ch > 4 {
		return nil, false, fmt.Errorf("%w: digital input channel %d out of range 1-4", ErrSyntax, ch)
	}
	return ReadDigitalInput{Channel: ch}, true, nil
}

// Rule 5: "all [dur] <state>" or "all,<dur> <state>". A duration is only
// legal with "closed".
func parseAllRelays(tokens []string) (Command, bool, error) {
	if !strings.HasPrefix(tokens[0], "all") {
		return nil, false, nil
	}

	var (
		duration float64
		state    string
		err      error
	)
	switch {
	case tokens[0] == "all" && len(tokens) == 2:
		state = tokens[1]
	case tokens[0] == "all" && len(tokens) == 3 && allDigits(tokens[1]):
		duration, err = parseDuration(tokens[1])
		if err != nil {
			return nil, false, err
		}
		state = tokens[2]
	case strings.HasPrefix(tokens[0], "all,") && len(tokens) == 2:
		duration, err = parseDuration(tokens[0][len("all,"):])
		if err != nil {
			return nil, false, err
		}
		state = tokens[1]
	default:
		return nil, false, fmt.Errorf("%w: all-relays form is 'all [seconds] open|closed'", ErrSyntax)
	}

	closed, err := parseState(state)
	if err != nil {
		return nil, false, err
	}
	if duration > 0 && !closed {
		return nil, false, fmt.Errorf("%w: a duration is only valid with 'closed'", ErrSyntax)
	}

	cmd := SetRelays{All: true}
	for ch := 1; ch <= 4; ch++ {
		cmd.Targets = append(cmd.Targets, RelayTarget{Channel: ch, Closed: closed, Duration: duration})
	}
	return cmd, true, nil
}

// Rule 6: a left-to-right sequence of (channel, [duration,] state)
// groups. The separate-token duration spelling needs a third token after
// it: "3 5 closed" is relay 3 for 5 seconds, "3 closed" is just relay 3.
func parseRelayPairs(tokens []string) (Command, bool, error) {
	var cmd SetRelays

	for len(tokens) > 0 {
		var (
			chTok    string
			duration float64
			err      error
		)

		if ch, dur, ok := strings.Cut(tokens[0], ","); ok {
			chTok = ch
			duration, err = parseDuration(dur)
			if err != nil {
				return nil, false, err
			}
			tokens = tokens[1:]
		} else {
			chTok = tokens[0]
			tokens = tokens[1:]
			if len(tokens) >= 2 && allDigits(tokens[0]) {
				duration, err = parseDuration(tokens[0])
				if err != nil {
					return nil, false, err
				}
				tokens = tokens[1:]
			}
		}

		if !allDigits(chTok) {
			return nil, false, fmt.Errorf("%w: expected relay channel, got %q", ErrSyntax, chTok)
		}
		ch, _ := strconv.Atoi(chTok)
		if ch < 1 || ch > 4 {
			return nil, false, fmt.Errorf("%w: relay channel %d out of range 1-4", ErrSyntax, ch)
		}

		if len(tokens) == 0 {
			return nil, false, fmt.Errorf("%w: missing state for relay %d", ErrSyntax, ch)
		}
		closed, err := parseState(tokens[0])
		if err != nil {
			return nil, false, err
		}
		tokens = tokens[1:]

		if duration > 0 && !closed {
			return nil, false, fmt.Errorf("%w: a duration is only valid with 'closed'", ErrSyntax)
		}
		cmd.Targets = append(cmd.Targets, RelayTarget{Channel: ch, Closed: closed, Duration: duration})
	}

	return cmd, true, nil
}

func parseState(tok string) (closed bool, err error) {
	switch tok {
	case stateClosed:
		return true, nil
	case stateOpen:
		return false, nil
	default:
		return false, fmt.Errorf("%w: state must be 'open' or 'closed', got %q", ErrSyntax, tok)
	}
}

func parseDuration(tok string) (float64, error) {
	d, err := strconv.ParseFloat(tok, 64)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: duration %q must be a positive number of seconds", ErrSyntax, tok)
	}
	return d, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
