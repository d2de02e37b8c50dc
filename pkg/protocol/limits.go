package protocol

// MaxArgumentDepth limits how deeply arrays and objects may nest inside a
// single message.
const MaxArgumentDepth = 64

// checkDepth scans raw JSON and fails once nesting exceeds max.
// Brackets inside strings are ignored.
func checkDepth(raw []byte, max int) error {
	depth := 0
	inString := false
	escaped := false
	for _, c := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[', '{':
			depth++
			if depth > max {
				return ErrMaxDepthExceeded
			}
		case ']', '}':
			depth--
		}
	}
	return nil
}
