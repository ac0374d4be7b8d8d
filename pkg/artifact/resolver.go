package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Slot describes one artifact the resolver should recover from a process run.
// The rendering scripts emit a primary FAAS sheet and an alternate UNIRRIG
// variant from a single invocation, so callers resolve each slot separately
// against the same captured output.
type Slot struct {
	// Name keys the slot's entry in structured generator output ("faas", "unirrig").
	Name string
	// SubDir is the variant directory under the output dir ("FAAS", "UNIRRIG").
	SubDir string
	// Tag is a record-qualified filename fragment, typically the sanitized ARF number.
	Tag string
	// Ext is the expected file extension including the dot.
	Ext string
	// Expected is the deterministic destination path, when the caller chose one.
	Expected string
}

// Request carries everything a strategy may consult.
type Request struct {
	Output    string
	OutputDir string
	Slot      Slot
}

// Strategy attempts to recover an artifact path for one slot. Returning false
// means "this strategy cannot tell", never an error: the chain simply moves on.
type Strategy interface {
	Resolve(req Request) (string, bool)
}

// Resolver runs strategies in order and returns the first hit.
type Resolver struct {
	strategies []Strategy
	logger     *zap.Logger
}

// NewResolver builds the default chain: structured JSON scan, labeled-text
// scan, directory scan, then expected-path-on-disk.
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		strategies: []Strategy{
			JSONLineStrategy{},
			LabeledLineStrategy{},
			DirectoryScanStrategy{},
			ExpectedPathStrategy{},
		},
		logger: logger,
	}
}

// NewResolverWithStrategies builds a resolver with an explicit chain.
func NewResolverWithStrategies(logger *zap.Logger, strategies ...Strategy) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{strategies: strategies, logger: logger}
}

// Resolve returns the recovered path for the slot, or false when every
// strategy came up empty. An unresolved slot means "no artifact this run".
func (r *Resolver) Resolve(req Request) (string, bool) {
	for _, s := range r.strategies {
		if path, ok := s.Resolve(req); ok {
			r.logger.Debug("artifact resolved",
				zap.String("slot", req.Slot.Name),
				zap.String("path", path),
				zap.String("strategy", strategyName(s)),
			)
			return path, true
		}
	}
	r.logger.Info("artifact unresolved", zap.String("slot", req.Slot.Name))
	return "", false
}

func strategyName(s Strategy) string {
	switch s.(type) {
	case JSONLineStrategy:
		return "json_line"
	case LabeledLineStrategy:
		return "labeled_line"
	case DirectoryScanStrategy:
		return "directory_scan"
	case ExpectedPathStrategy:
		return "expected_path"
	default:
		return "custom"
	}
}

// JSONLineStrategy scans for a self-contained JSON object on a single line
// that declares success and names a file path for the slot.
type JSONLineStrategy struct{}

// Resolve implements Strategy.
func (JSONLineStrategy) Resolve(req Request) (string, bool) {
	for _, line := range strings.Split(req.Output, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") || !strings.HasSuffix(line, "}") {
			continue
		}
		var doc map[string]interface{}
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			continue
		}
		if path, ok := pathFromDoc(doc, req.Slot); ok {
			return path, true
		}
	}
	return "", false
}

func pathFromDoc(doc map[string]interface{}, slot Slot) (string, bool) {
	if slot.Name != "" {
		if nested, ok := doc[slot.Name].(map[string]interface{}); ok {
			if !declinesSuccess(nested) {
				if path, ok := stringField(nested, "file_path", "pdf_path", "path"); ok {
					return path, true
				}
			}
		}
	}
	if declinesSuccess(doc) {
		return "", false
	}
	if path, ok := stringField(doc, "file_path", "pdf_path", "path"); ok {
		if slot.Ext == "" || strings.EqualFold(filepath.Ext(path), slot.Ext) {
			return path, true
		}
	}
	return "", false
}

// declinesSuccess returns true only when the document carries an explicit
// success=false flag. A missing flag does not disqualify nested slot results.
func declinesSuccess(doc map[string]interface{}) bool {
	raw, ok := doc["success"]
	if !ok {
		return false
	}
	flag, ok := raw.(bool)
	return ok && !flag
}

func stringField(doc map[string]interface{}, keys ...string) (string, bool) {
	for _, key := range keys {
		if raw, ok := doc[key]; ok {
			if value, ok := raw.(string); ok && strings.TrimSpace(value) != "" {
				return strings.TrimSpace(value), true
			}
		}
	}
	return "", false
}

// LabeledLineStrategy scans for a human-readable "label: path" line. The
// scripts print lines like "[OK] Excel file generated: /path/to/file.xlsx".
type LabeledLineStrategy struct{}

var pathLabels = []string{"file_path:", "pdf_path:", "generated:", "path:", "output:"}

// Resolve implements Strategy.
func (LabeledLineStrategy) Resolve(req Request) (string, bool) {
	for _, line := range strings.Split(req.Output, "\n") {
		lower := strings.ToLower(line)
		for _, label := range pathLabels {
			idx := strings.Index(lower, label)
			if idx < 0 {
				continue
			}
			candidate := strings.TrimSpace(line[idx+len(label):])
			if candidate == "" {
				continue
			}
			if req.Slot.Ext != "" && !strings.EqualFold(filepath.Ext(candidate), req.Slot.Ext) {
				continue
			}
			if !matchesVariant(candidate, req.Slot) {
				continue
			}
			return candidate, true
		}
	}
	return "", false
}

// matchesVariant keeps a dual-variant run from assigning one variant's file to
// the other slot.
func matchesVariant(path string, slot Slot) bool {
	if slot.SubDir == "" {
		return true
	}
	return strings.Contains(strings.ToLower(path), strings.ToLower(slot.SubDir))
}

// DirectoryScanStrategy lists the expected output directory (and the slot's
// variant sub-directory) for the newest file carrying the record tag and the
// expected extension.
type DirectoryScanStrategy struct{}

// Resolve implements Strategy.
func (DirectoryScanStrategy) Resolve(req Request) (string, bool) {
	if req.OutputDir == "" {
		return "", false
	}
	dirs := []string{req.OutputDir}
	if req.Slot.SubDir != "" {
		dirs = append([]string{filepath.Join(req.OutputDir, req.Slot.SubDir)}, dirs...)
	}

	type candidate struct {
		path    string
		modTime int64
	}
	var found []candidate
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			if req.Slot.Ext != "" && !strings.EqualFold(filepath.Ext(name), req.Slot.Ext) {
				continue
			}
			if req.Slot.Tag != "" && !strings.Contains(strings.ToLower(name), strings.ToLower(req.Slot.Tag)) {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			found = append(found, candidate{path: filepath.Join(dir, name), modTime: info.ModTime().UnixNano()})
		}
		if len(found) > 0 {
			break
		}
	}
	if len(found) == 0 {
		return "", false
	}
	sort.Slice(found, func(i, j int) bool { return found[i].modTime > found[j].modTime })
	return found[0].path, true
}

// ExpectedPathStrategy succeeds when the deterministic destination already
// exists on disk. Covers scripts that write the file but print nothing usable.
type ExpectedPathStrategy struct{}

// Resolve implements Strategy.
func (ExpectedPathStrategy) Resolve(req Request) (string, bool) {
	if req.Slot.Expected == "" {
		return "", false
	}
	info, err := os.Stat(req.Slot.Expected)
	if err != nil || info.IsDir() {
		return "", false
	}
	return req.Slot.Expected, true
}
