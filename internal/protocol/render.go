package protocol

import (
	"bytes"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	// EditDatePlaceholder is filled with the render date unless configured
	EditDatePlaceholder = "edit_date"
	// DefaultCSVPlaceholder receives the CSV when the configuration has no csv section
	DefaultCSVPlaceholder = "uploaded_csv"
	// DateLayout is the layout used for EditDatePlaceholder
	DateLayout = "2006_01_02"
)

var placeholderRe = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)>`)

// Input is everything needed to render one protocol
type Input struct {
	TemplateName string
	Template     []byte
	Config       []byte
	CSV          *CSVFile // nil when no CSV was uploaded
	Now          time.Time
}

// Result is a rendered protocol
type Result struct {
	FileName     string
	Output       []byte
	Replacements map[string]int
	CSVRows      int
	Warnings     []string
}

// Placeholders returns the distinct placeholder names of a template in order of
// first appearance
func Placeholders(tpl []byte) []string {
	seen := make(map[string]bool)
	var names []string

	for _, m := range placeholderRe.FindAllSubmatch(tpl, -1) {
		name := string(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}

	return names
}

// Render replaces the placeholders of the template with the configured values.
// Unknown placeholders are left as they are and reported as warnings.
func Render(in Input) (*Result, error) {
	if len(bytes.TrimSpace(in.Template)) == 0 {
		return nil, ErrEmptyTemplate
	}

	cfg, err := ParseConfig(in.Config)
	if err != nil {
		return nil, err
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}

	found := Placeholders(in.Template)
	inTemplate := make(map[string]bool, len(found))
	for _, name := range found {
		inTemplate[name] = true
	}

	values := make(map[string]string, len(cfg.Params)+len(cfg.CSV)+1)
	for name, v := range cfg.Params {
		values[name] = v
	}
	if _, ok := values[EditDatePlaceholder]; !ok && inTemplate[EditDatePlaceholder] {
		values[EditDatePlaceholder] = now.Format(DateLayout)
	}

	var warnings []string

	csvRows, csvWarnings, err := bindCSV(cfg, in.CSV, inTemplate, values)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, csvWarnings...)

	counts := make(map[string]int)
	out := placeholderRe.ReplaceAllFunc(in.Template, func(m []byte) []byte {
		name := string(m[1 : len(m)-1])
		v, ok := values[name]
		if !ok {
			return m
		}
		counts[name]++
		return []byte(v)
	})

	for _, name := range found {
		if _, ok := values[name]; !ok {
			warnings = append(warnings, fmt.Sprintf("placeholder <%s> has no value", name))
		}
	}
	for _, name := range cfg.ParamNames() {
		if counts[name] == 0 {
			warnings = append(warnings, fmt.Sprintf("param %q is not used by the template", name))
		}
	}

	return &Result{
		FileName:     OutputName(in.TemplateName),
		Output:       out,
		Replacements: counts,
		CSVRows:      csvRows,
		Warnings:     warnings,
	}, nil
}

func bindCSV(cfg *Config, file *CSVFile, inTemplate map[string]bool, values map[string]string) (int, []string, error) {
	targets := make(map[string]string, len(cfg.CSV))
	for name, expected := range cfg.CSV {
		targets[name] = expected
	}

	if len(targets) == 0 {
		if file == nil {
			return 0, nil, nil
		}
		_, taken := values[DefaultCSVPlaceholder]
		if !inTemplate[DefaultCSVPlaceholder] || taken {
			return 0, []string{fmt.Sprintf("CSV file %q is not referenced and was ignored", file.Name)}, nil
		}
		targets[DefaultCSVPlaceholder] = ""
	}

	names := sortedKeys(targets)

	if file == nil {
		return 0, nil, fmt.Errorf("%w: %s", ErrCSVRequired, strings.Join(names, ", "))
	}

	stats := InspectCSV(file.Data)
	warnings := append([]string(nil), stats.Warnings...)
	encoded := EncodeCSV(file.Data)

	for _, name := range names {
		values[name] = encoded
		if expected := targets[name]; expected != "" && expected != file.Name {
			warnings = append(warnings,
				fmt.Sprintf("configuration expects CSV %q for <%s>, got %q", expected, name, file.Name))
		}
	}

	return stats.Rows, warnings, nil
}

// OutputName derives the generated protocol file name from the template name
func OutputName(templateName string) string {
	base := path.Base(strings.ReplaceAll(templateName, `\`, "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		stem = "protocol"
	}

	for _, suffix := range []string{"_template", "-template"} {
		if trimmed := strings.TrimSuffix(stem, suffix); trimmed != stem && trimmed != "" {
			return trimmed + ".py"
		}
	}

	return stem + "_custom.py"
}

// SortedReplacements lists placeholder names that received a value
func (r *Result) SortedReplacements() []string {
	names := make([]string, 0, len(r.Replacements))
	for name := range r.Replacements {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
