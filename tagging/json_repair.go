package tagging

// repairJSON attempts to fix common JSON formatting issues from judge responses.
// It handles missing opening quotes before keys and trailing commas before a
// closing brace or bracket. String contents are left untouched.
func repairJSON(s string) string {
	result := []rune(s)
	fixed := make([]rune, 0, len(result)+16)

	inString := false
	escaped := false
	i := 0
	for i < len(result) {
		ch := result[i]

		if inString {
			fixed = append(fixed, ch)
			i++
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
			fixed = append(fixed, ch)
			i++

		case ',':
			// Drop a trailing comma: `[1, 2,]` -> `[1, 2]`
			j := i + 1
			for j < len(result) && isSpace(result[j]) {
				j++
			}
			if j < len(result) && (result[j] == '}' || result[j] == ']') {
				i++
				continue
			}
			fallthrough

		case '{':
			fixed = append(fixed, ch)
			i++

			for i < len(result) && isSpace(result[i]) {
				fixed = append(fixed, result[i])
				i++
			}

			// Unquoted key followed by `":`, e.g. `, score":` -> `, "score":`
			if i < len(result) && result[i] != '"' && isLetter(result[i]) {
				keyStart := i
				for i < len(result) && (isLetter(result[i]) || result[i] == '_') {
					i++
				}
				if i+1 < len(result) && result[i] == '"' && result[i+1] == ':' {
					fixed = append(fixed, '"')
					fixed = append(fixed, result[keyStart:i]...)
					fixed = append(fixed, '"')
					i++ // closing quote already written
					continue
				}
				fixed = append(fixed, result[keyStart:i]...)
			}

		default:
			fixed = append(fixed, ch)
			i++
		}
	}

	return string(fixed)
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t' || r == '\r'
}
