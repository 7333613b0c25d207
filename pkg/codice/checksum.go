package codice

import "strings"

// Check-letter tables for the 16th character. The identifier's first 15
// characters are summed position by position (1-indexed: odd positions use
// oddValues, even positions use evenValues); the sum mod 26 maps to A-Z.
var (
	oddValues = map[byte]int{
		'0': 1, '1': 0, '2': 5, '3': 7, '4': 9, '5': 13, '6': 15, '7': 17, '8': 19, '9': 21,
		'A': 1, 'B': 0, 'C': 5, 'D': 7, 'E': 9, 'F': 13, 'G': 15, 'H': 17, 'I': 19, 'J': 21,
		'K': 2, 'L': 4, 'M': 18, 'N': 20, 'O': 11, 'P': 3, 'Q': 6, 'R': 8, 'S': 12, 'T': 14,
		'U': 16, 'V': 10, 'W': 22, 'X': 25, 'Y': 24, 'Z': 23,
	}
	evenValues = map[byte]int{
		'0': 0, '1': 1, '2': 2, '3': 3, '4': 4, '5': 5, '6': 6, '7': 7, '8': 8, '9': 9,
		'A': 0, 'B': 1, 'C': 2, 'D': 3, 'E': 4, 'F': 5, 'G': 6, 'H': 7, 'I': 8, 'J': 9,
		'K': 10, 'L': 11, 'M': 12, 'N': 13, 'O': 14, 'P': 15, 'Q': 16, 'R': 17, 'S': 18,
		'T': 19, 'U': 20, 'V': 21, 'W': 22, 'X': 23, 'Y': 24, 'Z': 25,
	}
)

// CheckLetter computes the check letter over the first 15 characters of an
// identifier. The input must already be upper-case alphanumeric.
func CheckLetter(first15 string) (byte, bool) {
	if len(first15) != 15 {
		return 0, false
	}
	sum := 0
	for i := 0; i < 15; i++ {
		c := first15[i]
		var v int
		var ok bool
		if (i+1)%2 == 1 {
			v, ok = oddValues[c]
		} else {
			v, ok = evenValues[c]
		}
		if !ok {
			return 0, false
		}
		sum += v
	}
	return byte('A' + sum%26), true
}

// Valid reports whether code is a syntactically well-formed 16-character
// identifier whose check letter matches its first 15 characters.
func Valid(code string) bool {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 16 {
		return false
	}
	check, ok := CheckLetter(code[:15])
	return ok && code[15] == check
}
