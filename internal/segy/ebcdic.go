package segy

import "strings"

// ebcdicToASCII maps the code page 037 subset that appears in SEG-Y text
// headers. Unmapped code points decode to space.
var ebcdicToASCII = buildEBCDICTable()

func buildEBCDICTable() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = ' '
	}
	set := func(code byte, ch byte) { t[code] = ch }
	setRange := func(code byte, chars string) {
		for i := 0; i < len(chars); i++ {
			t[int(code)+i] = chars[i]
		}
	}
	set(0x40, ' ')
	set(0x4B, '.')
	set(0x4C, '<')
	set(0x4D, '(')
	set(0x4E, '+')
	set(0x4F, '|')
	set(0x50, '&')
	set(0x5A, '!')
	set(0x5B, '$')
	set(0x5C, '*')
	set(0x5D, ')')
	set(0x5E, ';')
	set(0x60, '-')
	set(0x61, '/')
	set(0x6B, ',')
	set(0x6C, '%')
	set(0x6D, '_')
	set(0x6E, '>')
	set(0x6F, '?')
	set(0x7A, ':')
	set(0x7B, '#')
	set(0x7C, '@')
	set(0x7D, '\'')
	set(0x7E, '=')
	set(0x7F, '"')
	setRange(0x81, "abcdefghi")
	setRange(0x91, "jklmnopqr")
	setRange(0xA2, "stuvwxyz")
	setRange(0xC1, "ABCDEFGHI")
	setRange(0xD1, "JKLMNOPQR")
	setRange(0xE2, "STUVWXYZ")
	setRange(0xF0, "0123456789")
	return t
}

// asciiToEBCDIC is the inverse mapping. The read path never encodes;
// tests use it to synthesize text headers.
var asciiToEBCDIC = buildASCIITable()

func buildASCIITable() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = 0x40
	}
	for code, ch := range ebcdicToASCII {
		if ch != ' ' {
			t[ch] = byte(code)
		}
	}
	t[' '] = 0x40
	return t
}

// decodeTextHeader splits the 3200-byte EBCDIC block into 40 lines of 80
// characters, trailing whitespace stripped.
func decodeTextHeader(raw []byte) []string {
	lines := make([]string, 0, textLineCount)
	for i := 0; i < textLineCount; i++ {
		start := i * textLineWidth
		if start >= len(raw) {
			break
		}
		end := start + textLineWidth
		if end > len(raw) {
			end = len(raw)
		}
		buf := make([]byte, end-start)
		for j, b := range raw[start:end] {
			buf[j] = ebcdicToASCII[b]
		}
		lines = append(lines, strings.TrimRight(string(buf), " "))
	}
	return lines
}

// encodeTextHeader builds a 3200-byte EBCDIC block from up to 40 lines,
// truncating long lines at 80 characters. Test fixtures synthesize their
// text headers with it.
func encodeTextHeader(lines []string) []byte {
	out := make([]byte, textHeaderSize)
	for i := range out {
		out[i] = 0x40
	}
	for i, line := range lines {
		if i >= textLineCount {
			break
		}
		if len(line) > textLineWidth {
			line = line[:textLineWidth]
		}
		for j := 0; j < len(line); j++ {
			out[i*textLineWidth+j] = asciiToEBCDIC[line[j]]
		}
	}
	return out
}
