package roster

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source produces a complete roster snapshot.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// FileSource reads a roster export in CSV, JSON or YAML, chosen by extension.
type FileSource struct {
	Path string
	// EmailDomain is used to generate first.last@domain addresses for CSV
	// rows that carry no email.
	EmailDomain string
}

func (s FileSource) Load(_ context.Context) ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open roster file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(s.Path)) {
	case ".csv":
		return ParseCSV(f, s.EmailDomain)
	case ".json":
		var out []Entry
		if err := json.NewDecoder(f).Decode(&out); err != nil {
			return nil, fmt.Errorf("decode roster json: %w", err)
		}
		return out, nil
	case ".yaml", ".yml":
		var out []Entry
		if err := yaml.NewDecoder(f).Decode(&out); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode roster yaml: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported roster file type %q", filepath.Ext(s.Path))
	}
}

// ParseCSV reads a member roster export. Headers are matched ignoring case:
// Name, Email (or "Email Address"), Branch, and "Role Title" (or Role).
func ParseCSV(r io.Reader, emailDomain string) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read roster header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	nameIdx, ok := col["name"]
	if !ok {
		return nil, errors.New("roster csv: missing Name column")
	}
	emailIdx := firstColumn(col, "email", "email address")
	branchIdx := firstColumn(col, "branch")
	roleIdx := firstColumn(col, "role title", "role")

	var out []Entry
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read roster row: %w", err)
		}
		name := field(rec, nameIdx)
		if name == "" {
			continue
		}
		email := field(rec, emailIdx)
		if !strings.Contains(email, "@") {
			email = GenerateEmail(name, emailDomain)
		}
		out = append(out, Entry{
			Name:   name,
			Email:  email,
			Branch: field(rec, branchIdx),
			Role:   field(rec, roleIdx),
		})
	}
	return out, nil
}

// GenerateEmail builds first.last@domain from a display name.
func GenerateEmail(name, domain string) string {
	parts := strings.Fields(strings.ToLower(name))
	if len(parts) == 0 || domain == "" {
		return ""
	}
	local := parts[0]
	if len(parts) >= 2 {
		local = parts[0] + "." + parts[len(parts)-1]
	}
	return local + "@" + domain
}

func firstColumn(col map[string]int, names ...string) int {
	for _, n := range names {
		if i, ok := col[n]; ok {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < 0 || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
