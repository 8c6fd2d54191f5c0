package textproc

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// Table is a character-level traditional to simplified mapping.
type Table map[rune]rune

// LoadTable reads an OpenCC style character dictionary: one entry per line,
// "繁<TAB>简 [简...]". Only the first candidate is used; phrase entries are skipped.
func LoadTable(r io.Reader) (Table, error) {
	t := make(Table)
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		from, to, ok := strings.Cut(line, "\t")
		if !ok {
			return nil, errors.Errorf("conversion table line %d: missing tab", n)
		}
		fields := strings.Fields(to)
		if utf8.RuneCountInString(from) != 1 || len(fields) == 0 || utf8.RuneCountInString(fields[0]) != 1 {
			continue
		}
		src, _ := utf8.DecodeRuneInString(from)
		dst, _ := utf8.DecodeRuneInString(fields[0])
		t[src] = dst
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read conversion table")
	}
	return t, nil
}

// Convert maps every rune found in the table.
func (t Table) Convert(s string) string {
	return strings.Map(func(r rune) rune {
		if to, ok := t[r]; ok {
			return to
		}
		return r
	}, s)
}
