package mangle

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// BaseFragment is the fragment that receives program text appearing before
// any #program header.
const BaseFragment = "base"

// Fragment is a named, parameterised chunk of Mangle source. Parameters are
// referenced inside Text as $name and replaced by numbers when grounded.
type Fragment struct {
	Name   string
	Params []string
	Text   string
}

// Part names a fragment instance to ground: subproblem(2), opt(17), base.
type Part struct {
	Name string
	Args []int64
}

// NewPart builds a part from a fragment name and its arguments.
func NewPart(name string, args ...int64) Part {
	return Part{Name: name, Args: args}
}

// String renders the part as name(arg, ...), or just name without args.
func (p Part) String() string {
	if len(p.Args) == 0 {
		return p.Name
	}
	args := make([]string, len(p.Args))
	for i, a := range p.Args {
		args[i] = strconv.FormatInt(a, 10)
	}
	return p.Name + "(" + strings.Join(args, ", ") + ")"
}

var (
	programHeader = regexp.MustCompile(`^\s*#program\s+([a-z][A-Za-z0-9_]*)\s*(?:\(([^)]*)\))?\s*\.\s*$`)
	paramRef      = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
	paramName     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

// Equal reports whether two fragments have identical name, params and text.
func (f Fragment) Equal(o Fragment) bool {
	if f.Name != o.Name || f.Text != o.Text || len(f.Params) != len(o.Params) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != o.Params[i] {
			return false
		}
	}
	return true
}

// Instantiate substitutes args for the fragment parameters.
func (f Fragment) Instantiate(args []int64) (string, error) {
	if len(args) != len(f.Params) {
		return "", fmt.Errorf("fragment %s expects %d args, got %d", f.Name, len(f.Params), len(args))
	}
	values := make(map[string]string, len(args))
	for i, p := range f.Params {
		values[p] = strconv.FormatInt(args[i], 10)
	}
	var missing string
	text := paramRef.ReplaceAllStringFunc(f.Text, func(ref string) string {
		v, ok := values[ref[1:]]
		if !ok {
			missing = ref
			return ref
		}
		return v
	})
	if missing != "" {
		return "", fmt.Errorf("fragment %s references undeclared parameter %s", f.Name, missing)
	}
	return text, nil
}

// SplitProgram splits program source into fragments at "#program name(params)."
// lines. Text before the first header belongs to the base fragment. Sections
// sharing a name are concatenated in order and must agree on parameters.
func SplitProgram(src string) ([]Fragment, error) {
	var (
		order   []string
		byName  = make(map[string]*Fragment)
		bodies  = make(map[string]*strings.Builder)
		current = BaseFragment
	)
	open := func(name string, params []string, line int) error {
		if f, ok := byName[name]; ok {
			if strings.Join(f.Params, ",") != strings.Join(params, ",") {
				return fmt.Errorf("line %d: fragment %s redeclared with parameters (%s), previously (%s)",
					line, name, strings.Join(params, ", "), strings.Join(f.Params, ", "))
			}
		} else {
			byName[name] = &Fragment{Name: name, Params: params}
			bodies[name] = &strings.Builder{}
			order = append(order, name)
		}
		current = name
		return nil
	}
	if err := open(BaseFragment, nil, 0); err != nil {
		return nil, err
	}

	scanner := bufio.NewScanner(strings.NewReader(src))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if m := programHeader.FindStringSubmatch(line); m != nil {
			params, err := parseParams(m[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if err := open(m[1], params, lineNo); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#program") {
			return nil, fmt.Errorf("line %d: malformed #program header %q", lineNo, line)
		}
		bodies[current].WriteString(line)
		bodies[current].WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan program: %w", err)
	}

	fragments := make([]Fragment, 0, len(order))
	for _, name := range order {
		f := byName[name]
		f.Text = bodies[name].String()
		if name == BaseFragment && strings.TrimSpace(f.Text) == "" && len(order) > 1 {
			continue
		}
		fragments = append(fragments, *f)
	}
	return fragments, nil
}

func parseParams(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var params []string
	seen := make(map[string]bool)
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if !paramName.MatchString(p) {
			return nil, fmt.Errorf("invalid parameter name %q", p)
		}
		if seen[p] {
			return nil, fmt.Errorf("duplicate parameter %q", p)
		}
		seen[p] = true
		params = append(params, p)
	}
	return params, nil
}

// MergeFragments concatenates same-named fragments coming from several input
// files, keeping first-seen order.
func MergeFragments(sets ...[]Fragment) ([]Fragment, error) {
	var order []string
	merged := make(map[string]*Fragment)
	for _, set := range sets {
		for _, f := range set {
			existing, ok := merged[f.Name]
			if !ok {
				cp := f
				merged[f.Name] = &cp
				order = append(order, f.Name)
				continue
			}
			if strings.Join(existing.Params, ",") != strings.Join(f.Params, ",") {
				return nil, fmt.Errorf("fragment %s declared with parameters (%s) and (%s)",
					f.Name, strings.Join(existing.Params, ", "), strings.Join(f.Params, ", "))
			}
			existing.Text += f.Text
		}
	}
	out := make([]Fragment, 0, len(order))
	for _, name := range order {
		out = append(out, *merged[name])
	}
	return out, nil
}
