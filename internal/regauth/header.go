package regauth

import "strings"

// Challenge is one parsed element of a Www-Authenticate header, e.g.
// `Bearer realm="https://auth.docker.io/token",service="registry.docker.io"`.
type Challenge struct {
	AuthType string
	Params   map[string]string
}

type charLU byte

const (
	isSpace charLU = 1 << iota
	isAlphaNum
)

var charLUs [256]charLU

func init() {
	for c := 0; c < 256; c++ {
		if strings.ContainsRune(" \t\r\n", rune(c)) {
			charLUs[c] |= isSpace
		}
		if (rune('a') <= rune(c) && rune(c) <= rune('z')) ||
			(rune('A') <= rune(c) && rune(c) <= rune('Z')) ||
			(rune('0') <= rune(c) && rune(c) <= rune('9')) {
			charLUs[c] |= isAlphaNum
		}
	}
}

// ParseAuthHeaders parses every Www-Authenticate header line into its
// challenges.
func ParseAuthHeaders(ahl []string) ([]Challenge, error) {
	var cl []Challenge
	for _, ah := range ahl {
		c, err := ParseAuthHeader(ah)
		if err != nil {
			return nil, err
		}
		cl = append(cl, c...)
	}
	return cl, nil
}

// ParseAuthHeader parses a single Www-Authenticate header line, which may
// contain multiple comma-separated challenges of different auth types, e.g.
// `Bearer realm="https://auth.docker.io/token",service="registry.docker.io"`.
func ParseAuthHeader(ah string) ([]Challenge, error) {
	var cl []Challenge
	var c *Challenge
	var eb, atb, kb, vb []byte
	state := "string"

	for _, b := range []byte(ah) {
		switch state {
		case "string":
			if len(eb) == 0 {
				if b == '"' {
					state = "quoted"
				} else if charLUs[b]&isAlphaNum != 0 {
					eb = append(eb, b)
				} else if charLUs[b]&isSpace != 0 {
					// ignore leading whitespace
				} else {
					return nil, ErrParseFailure
				}
			} else {
				if charLUs[b]&isAlphaNum != 0 {
					eb = append(eb, b)
				} else if b == '=' && len(atb) > 0 {
					kb = eb
					eb = []byte{}
					state = "value"
				} else if charLUs[b]&isSpace != 0 {
					atb = eb
					eb = []byte{}
					c = &Challenge{AuthType: strings.ToLower(string(atb)), Params: map[string]string{}}
					cl = append(cl, *c)
				} else {
					return nil, ErrParseFailure
				}
			}
		case "value":
			if charLUs[b]&isAlphaNum != 0 {
				vb = append(vb, b)
			} else if b == '"' && len(vb) == 0 {
				state = "quoted"
			} else if charLUs[b]&isSpace != 0 || b == ',' {
				c.Params[strings.ToLower(string(kb))] = string(vb)
				kb, vb = []byte{}, []byte{}
				if b == ',' {
					state = "string"
				} else {
					state = "endvalue"
				}
			} else {
				return nil, ErrParseFailure
			}
		case "quoted":
			if b == '"' {
				c.Params[strings.ToLower(string(kb))] = string(vb)
				kb, vb = []byte{}, []byte{}
				state = "endvalue"
			} else if b == '\\' {
				state = "escape"
			} else {
				vb = append(vb, b)
			}
		case "endvalue":
			if charLUs[b]&isSpace != 0 {
				// ignore
			} else if b == ',' {
				state = "string"
			} else {
				return nil, ErrParseFailure
			}
		case "escape":
			vb = append(vb, b)
			state = "quoted"
		default:
			return nil, ErrParseFailure
		}
	}

	switch state {
	case "string":
		if len(eb) != 0 {
			atb = eb
			c = &Challenge{AuthType: strings.ToLower(string(atb)), Params: map[string]string{}}
			cl = append(cl, *c)
		}
	case "value":
		if len(vb) != 0 {
			c.Params[strings.ToLower(string(kb))] = string(vb)
		}
	case "quoted", "escape":
		return nil, ErrParseFailure
	}

	return cl, nil
}
