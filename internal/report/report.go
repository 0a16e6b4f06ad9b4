// Package report writes per-job rewrite case artifacts to disk.
package report

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"sqlboost/internal/candidate"
	"sqlboost/internal/session"
	"sqlboost/internal/util"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Reporter writes case artifacts to disk, one directory per job.
type Reporter struct {
	OutputDir   string
	UseUUIDPath bool
	caseSeq     int
}

// Case describes a report directory.
type Case struct {
	ID  string
	Dir string
}

// CandidateRecord is the persisted view of one attempted rewrite.
type CandidateRecord struct {
	ID         string  `json:"id"`
	Lineage    string  `json:"lineage"`
	Lane       int     `json:"lane"`
	Relevance  float64 `json:"relevance"`
	Output     string  `json:"output,omitempty"`
	Verdict    string  `json:"verdict"`
	Status     string  `json:"status,omitempty"`
	Speedup    float64 `json:"speedup,omitempty"`
	ApplyError string  `json:"apply_error,omitempty"`
}

// Summary captures the persisted metadata for a case.
type Summary struct {
	JobID          string            `json:"job_id"`
	Status         string            `json:"status"`
	Bucket         string            `json:"bucket,omitempty"`
	BestSpeedup    float64           `json:"best_speedup"`
	BestLineage    []string          `json:"best_lineage,omitempty"`
	RoundsUsed     int               `json:"rounds_used"`
	GeneratorCalls int               `json:"generator_calls"`
	Error          string            `json:"error,omitempty"`
	Candidates     []CandidateRecord `json:"candidates"`
	Details        map[string]any    `json:"details"`
	UploadLocation string            `json:"upload_location"`
	CaseID         string            `json:"case_id"`
	CaseDir        string            `json:"case_dir"`
	ArchiveName    string            `json:"archive_name"`
	ArchiveCodec   string            `json:"archive_codec"`
	Timestamp      string            `json:"timestamp"`
}

// New creates a reporter that writes to outputDir.
func New(outputDir string) *Reporter {
	return &Reporter{OutputDir: outputDir}
}

// NewCase allocates a new case directory.
func (r *Reporter) NewCase() (Case, error) {
	r.caseSeq++
	caseID := uuid.New().String()
	if v7, err := uuid.NewV7(); err == nil {
		caseID = v7.String()
	}
	caseDir := fmt.Sprintf("case_%04d_%s", r.caseSeq, caseID)
	if r.UseUUIDPath {
		caseDir = caseID
	}
	dir := filepath.Join(r.OutputDir, caseDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Case{}, err
	}
	_ = os.WriteFile(filepath.Join(dir, "README.md"), []byte("# Rewrite Case\n\n- Original query: original.sql\n- Accepted rewrite: rewrite.sql\n- Outcome metadata: summary.json\n"), 0o644)
	return Case{ID: caseID, Dir: dir}, nil
}

const (
	CaseArchiveName  = "case.tar.zst"
	CaseArchiveCodec = "zstd"
)

// Summarize converts a session outcome plus its candidate record into
// the persisted summary.
func Summarize(res session.Result, patches []candidate.Patch) Summary {
	records := make([]CandidateRecord, 0, len(patches))
	for _, p := range patches {
		rec := CandidateRecord{
			ID:         p.ID,
			Lineage:    p.Lineage,
			Lane:       p.Lane,
			Relevance:  p.Relevance,
			Verdict:    p.Verdict.String(),
			ApplyError: p.ApplyError,
		}
		if p.Output != nil {
			rec.Output = p.Output.Serialize()
		}
		if p.Benchmarked() {
			rec.Status = p.Status.String()
			rec.Speedup = p.Speedup
		}
		records = append(records, rec)
	}
	return Summary{
		JobID:          res.JobID,
		Status:         res.StatusName,
		BestSpeedup:    res.BestSpeedup,
		BestLineage:    res.BestLineage,
		RoundsUsed:     res.RoundsUsed,
		GeneratorCalls: res.GeneratorCalls,
		Error:          res.Err,
		Candidates:     records,
		Timestamp:      time.Now().UTC().Format(time.RFC3339),
	}
}

// WriteSummary writes summary.json into the case directory.
func (r *Reporter) WriteSummary(c Case, summary Summary) error {
	summary.CaseID = c.ID
	summary.CaseDir = filepath.Base(c.Dir)
	f, err := os.Create(filepath.Join(c.Dir, "summary.json"))
	if err != nil {
		return err
	}
	defer util.CloseWithErr(f, "summary output")
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return encodeSummaryStable(enc, summary)
}

// WriteSQL writes a SQL file from the provided statements.
func (r *Reporter) WriteSQL(c Case, name string, statements []string) error {
	content := strings.Join(statements, ";\n") + ";\n"
	return r.WriteText(c, name, content)
}

// WriteText writes raw text content into the case directory.
func (r *Reporter) WriteText(c Case, name string, content string) error {
	path := filepath.Join(c.Dir, name)
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// WriteCaseArchive creates a compressed archive for the case directory.
func (r *Reporter) WriteCaseArchive(c Case) (name string, codec string, err error) {
	archivePath := filepath.Join(c.Dir, CaseArchiveName)
	if removeErr := os.Remove(archivePath); removeErr != nil && !os.IsNotExist(removeErr) {
		return "", "", removeErr
	}
	defer func() {
		if err != nil {
			_ = os.Remove(archivePath)
		}
	}()
	file, err := os.Create(archivePath)
	if err != nil {
		return "", "", err
	}
	defer util.CloseWithErr(file, "archive output")

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return "", "", err
	}
	defer func() {
		if closeErr := zw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	tw := tar.NewWriter(zw)
	defer func() {
		if closeErr := tw.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
	}()

	walkErr := filepath.WalkDir(c.Dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || path == archivePath {
			return nil
		}
		rel, err := filepath.Rel(c.Dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		src, err := os.Open(path)
		if err != nil {
			return err
		}
		if _, err := io.Copy(tw, src); err != nil {
			util.CloseWithErr(src, "archive source")
			return err
		}
		util.CloseWithErr(src, "archive source")
		return nil
	})
	if walkErr != nil {
		return "", "", walkErr
	}
	return CaseArchiveName, CaseArchiveCodec, nil
}

func encodeSummaryStable(enc *json.Encoder, summary Summary) error {
	type summaryAlias Summary
	alias := summaryAlias(summary)
	rawDetails, err := encodeOrderedValue(alias.Details)
	if err != nil {
		return err
	}
	alias.Details = nil
	payload := struct {
		summaryAlias
		Details json.RawMessage `json:"details"`
	}{
		summaryAlias: alias,
		Details:      rawDetails,
	}
	return enc.Encode(payload)
}

func encodeOrderedValue(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("null"), nil
	}
	buf := &strings.Builder{}
	if err := writeOrderedJSON(buf, v); err != nil {
		return nil, err
	}
	return json.RawMessage(buf.String()), nil
}

func writeOrderedJSON(w io.Writer, v any) error {
	if v == nil {
		_, err := io.WriteString(w, "null")
		return err
	}
	if raw, ok := v.(json.RawMessage); ok {
		_, err := w.Write(raw)
		return err
	}
	switch val := v.(type) {
	case map[string]any:
		return writeOrderedMap(w, val)
	case []any:
		return writeOrderedSlice(w, val)
	}
	rv := reflect.ValueOf(v)
	if rv.IsValid() {
		switch rv.Kind() {
		case reflect.Map:
			if rv.Type().Key().Kind() == reflect.String {
				return writeOrderedMapValue(w, rv)
			}
		case reflect.Slice, reflect.Array:
			return writeOrderedSliceValue(w, rv)
		}
	}
	return writeScalarJSON(w, v)
}

func writeOrderedMap(w io.Writer, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, k := range keys {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return err
		}
		if _, err := w.Write(keyJSON); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ":"); err != nil {
			return err
		}
		if err := writeOrderedJSON(w, m[k]); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

func writeOrderedMapValue(w io.Writer, rv reflect.Value) error {
	keys := rv.MapKeys()
	strKeys := make([]string, 0, len(keys))
	for _, k := range keys {
		strKeys = append(strKeys, k.String())
	}
	sort.Strings(strKeys)
	if _, err := io.WriteString(w, "{"); err != nil {
		return err
	}
	for i, key := range strKeys {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeScalarJSON(w, key); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ":"); err != nil {
			return err
		}
		val := rv.MapIndex(reflect.ValueOf(key))
		if err := writeOrderedJSON(w, val.Interface()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "}")
	return err
}

func writeOrderedSlice(w io.Writer, vals []any) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i, item := range vals {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeOrderedJSON(w, item); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

func writeOrderedSliceValue(w io.Writer, rv reflect.Value) error {
	if _, err := io.WriteString(w, "["); err != nil {
		return err
	}
	for i := 0; i < rv.Len(); i++ {
		if i > 0 {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		if err := writeOrderedJSON(w, rv.Index(i).Interface()); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "]")
	return err
}

func writeScalarJSON(w io.Writer, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	data := bytes.TrimRight(buf.Bytes(), "\n")
	_, err := w.Write(data)
	return err
}
