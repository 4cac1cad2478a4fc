package idf

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Parse reads an IDF document into a Model. The grammar is the flat
// EnergyPlus object syntax: comma-separated fields terminated by a
// semicolon, `!` line comments, with `!- Field Name` annotations naming
// the field on the same line.
func Parse(r io.Reader) (*Model, error) {
	m := NewModel()

	var (
		tokens []string
		names  []string
		line   int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		code, annotation := splitComment(sc.Text())
		if strings.TrimSpace(code) == "" {
			continue
		}

		pushed := 0
		rest := code
		for {
			idx := strings.IndexAny(rest, ",;")
			if idx < 0 {
				if strings.TrimSpace(rest) != "" {
					return nil, fmt.Errorf("idf: line %d: field %q not terminated by ',' or ';'", line, strings.TrimSpace(rest))
				}
				break
			}
			tokens = append(tokens, strings.TrimSpace(rest[:idx]))
			names = append(names, "")
			pushed++
			terminator := rest[idx]
			rest = rest[idx+1:]
			if terminator == ';' {
				// The annotation names the last field on the line.
				if annotation != "" && pushed > 0 {
					names[len(names)-1] = annotation
				}
				obj, err := buildObject(tokens, names)
				if err != nil {
					return nil, fmt.Errorf("idf: line %d: %w", line, err)
				}
				m.Add(obj)
				tokens, names = nil, nil
				pushed = 0
				annotation = ""
			}
		}
		if annotation != "" && pushed > 0 {
			names[len(names)-1] = annotation
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("idf: read: %w", err)
	}
	if len(tokens) > 0 {
		return nil, fmt.Errorf("idf: unterminated object %q at end of input", tokens[0])
	}
	return m, nil
}

// splitComment separates code from a trailing `!` comment and extracts the
// field-name annotation from `!- Name {units}` comments.
func splitComment(line string) (code, annotation string) {
	idx := strings.Index(line, "!")
	if idx < 0 {
		return line, ""
	}
	code = line[:idx]
	comment := strings.TrimSpace(line[idx+1:])
	if !strings.HasPrefix(comment, "-") {
		return code, ""
	}
	annotation = strings.TrimSpace(strings.TrimPrefix(comment, "-"))
	// Drop a trailing units suffix, e.g. "Fan Pressure Rise {Pa}".
	if u := strings.Index(annotation, "{"); u >= 0 {
		annotation = strings.TrimSpace(annotation[:u])
	}
	return code, annotation
}

func buildObject(tokens, names []string) (*Object, error) {
	if len(tokens) == 0 || tokens[0] == "" {
		return nil, fmt.Errorf("object with empty class")
	}
	o := &Object{Class: tokens[0]}
	for i := 1; i < len(tokens); i++ {
		o.Fields = append(o.Fields, Field{Name: names[i], Value: tokens[i]})
	}
	return o, nil
}

// Write serializes the model back to IDF text. Output is deterministic:
// one field per line with its annotation, objects in collection order.
func (m *Model) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, class := range m.Classes() {
		for _, o := range m.Objects(class) {
			if len(o.Fields) == 0 {
				if _, err := fmt.Fprintf(bw, "%s;\n\n", o.Class); err != nil {
					return err
				}
				continue
			}
			if _, err := fmt.Fprintf(bw, "%s,\n", o.Class); err != nil {
				return err
			}
			for i, f := range o.Fields {
				sep := ","
				if i == len(o.Fields)-1 {
					sep = ";"
				}
				cell := "    " + f.Value + sep
				if f.Name != "" {
					if _, err := fmt.Fprintf(bw, "%-28s !- %s\n", cell, f.Name); err != nil {
						return err
					}
				} else {
					if _, err := fmt.Fprintf(bw, "%s\n", cell); err != nil {
						return err
					}
				}
			}
			if _, err := fmt.Fprintln(bw); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Serialize returns the model's IDF text.
func (m *Model) Serialize() []byte {
	var sb strings.Builder
	_ = m.Write(&sb)
	return []byte(sb.String())
}
