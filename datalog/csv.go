// Copyright 2026 The go-moku Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package datalog

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// renderer turns processed records into CSV text according to the
// session's header and row templates. Templates use `{name}`
// placeholders with an optional index and printf-style format spec,
// e.g. "{t:.8e}, {ch1[0]:.3f}". Bound names are:
//
//	T         start time of the capture
//	d         timestep between records
//	n         1-based record counter
//	t         elapsed time, (n-1)*d
//	ch1..chN  the channels' processed records
//
// `{{` and `}}` escape literal braces.
type renderer struct {
	hdr     string
	row     string
	deltat  float64
	start   string
	n       int
	hdrDone bool
}

func newRenderer(cfg Config) *renderer {
	return &renderer{
		hdr:    cfg.Header,
		row:    cfg.Format,
		deltat: cfg.TimeStep,
		start:  time.Unix(int64(cfg.StartTime), 0).Format(time.ANSIC),
	}
}

func (r *renderer) render(w io.Writer, recs [][]Record, n int) error {
	vars := map[string]interface{}{
		"T": r.start,
		"d": r.deltat,
		"n": r.n,
		"t": float64(r.n) * r.deltat,
	}
	for ch := range recs {
		vars[fmt.Sprintf("ch%d", ch+1)] = Record(nil)
	}

	if !r.hdrDone {
		s, err := renderTemplate(r.hdr, vars)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return xerrors.Errorf("datalog: could not write CSV header: %w", err)
		}
		r.hdrDone = true
	}

	for i := 0; i < n; i++ {
		r.n++
		vars["n"] = r.n
		vars["t"] = float64(r.n-1) * r.deltat
		for ch := range recs {
			vars[fmt.Sprintf("ch%d", ch+1)] = recs[ch][i]
		}
		s, err := renderTemplate(r.row, vars)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return xerrors.Errorf("datalog: could not write CSV row: %w", err)
		}
	}
	return nil
}

func renderTemplate(tmpl string, vars map[string]interface{}) (string, error) {
	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				sb.WriteByte('{')
				i++
				continue
			}
			j := strings.IndexByte(tmpl[i:], '}')
			if j < 0 {
				return "", xerrors.Errorf("datalog: unterminated placeholder in %q: %w", tmpl, ErrFormat)
			}
			s, err := renderField(tmpl[i+1:i+j], vars)
			if err != nil {
				return "", err
			}
			sb.WriteString(s)
			i += j
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				i++
			}
			sb.WriteByte('}')
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func renderField(field string, vars map[string]interface{}) (string, error) {
	name, spec := field, ""
	if i := strings.IndexByte(field, ':'); i >= 0 {
		name, spec = field[:i], field[i+1:]
	}

	idx := -1
	if i := strings.IndexByte(name, '['); i >= 0 {
		if !strings.HasSuffix(name, "]") {
			return "", xerrors.Errorf("datalog: malformed placeholder %q: %w", field, ErrFormat)
		}
		v, err := strconv.Atoi(name[i+1 : len(name)-1])
		if err != nil || v < 0 {
			return "", xerrors.Errorf("datalog: malformed placeholder %q: %w", field, ErrFormat)
		}
		name, idx = name[:i], v
	}

	v, ok := vars[name]
	if !ok {
		// templates may reference a channel absent from the capture
		// (absolute channel numbering in legacy files); it renders
		// as zero.
		if !isChannel(name) {
			return "", xerrors.Errorf("datalog: unknown placeholder %q: %w", name, ErrFormat)
		}
		v = Record(nil)
	}
	if idx >= 0 {
		rec, ok := v.(Record)
		if !ok {
			return "", xerrors.Errorf("datalog: placeholder %q is not indexable: %w", name, ErrFormat)
		}
		if idx >= len(rec) {
			return "", xerrors.Errorf("datalog: index %d out of range for %q: %w", idx, name, ErrFormat)
		}
		v = rec[idx]
	}
	if rec, ok := v.(Record); ok && len(rec) == 1 {
		v = rec[0]
	}
	return formatValue(v, spec)
}

// isChannel reports whether name has the chN shape.
func isChannel(name string) bool {
	if len(name) < 3 || name[:2] != "ch" {
		return false
	}
	for _, c := range name[2:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func formatValue(v interface{}, spec string) (string, error) {
	if spec == "" {
		switch x := v.(type) {
		case string:
			return x, nil
		case int:
			return strconv.Itoa(x), nil
		case float64:
			return strconv.FormatFloat(x, 'g', -1, 64), nil
		case Value:
			return x.String(), nil
		case Record:
			if x == nil {
				return "0", nil
			}
			return x.String(), nil
		}
		return fmt.Sprintf("%v", v), nil
	}

	verb := spec[len(spec)-1]
	switch verb {
	case 'e', 'E', 'f', 'F', 'g', 'G':
		f, err := asFloat(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%"+spec, f), nil
	case 'd', 'x', 'X', 'o', 'b':
		i, err := asInt(v)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%"+spec, i), nil
	}
	return "", xerrors.Errorf("datalog: unsupported format spec %q: %w", spec, ErrFormat)
}

func asFloat(v interface{}) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case int:
		return float64(x), nil
	case Value:
		return x.Float(), nil
	case Record:
		if x == nil {
			return 0, nil
		}
	}
	return 0, xerrors.Errorf("datalog: value %v is not numeric: %w", v, ErrFormat)
}

func asInt(v interface{}) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case Value:
		if i, ok := x.integral(); ok {
			return i, nil
		}
	case Record:
		if x == nil {
			return 0, nil
		}
	}
	return 0, xerrors.Errorf("datalog: value %v is not integral: %w", v, ErrFormat)
}
