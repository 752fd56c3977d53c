// Package routing measures how reliably a model maps user messages onto the
// PromptFill tools, using a bucketed golden prompt set.
package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/promptfill/promptfill/internal/llm"
)

// Completer is the part of llm.Client the evaluation needs.
type Completer interface {
	Complete(ctx context.Context, req *llm.Request) (*llm.Response, error)
}

// Options configures a run.
type Options struct {
	Model       string
	Tools       []string
	MinAccuracy float64
	Concurrency int
	// Now stamps the report; defaults to time.Now.
	Now func() time.Time
}

// Row is the outcome for one prompt.
type Row struct {
	Bucket         string `json:"bucket"`
	Prompt         string `json:"prompt"`
	Expected       string `json:"expected"`
	Prediction     string `json:"prediction"`
	RawModelOutput string `json:"raw_model_output"`
	Correct        bool   `json:"correct"`
}

// Summary is the accuracy over a set of rows.
type Summary struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Accuracy float64 `json:"accuracy"`
}

// BucketResult is the summary and rows of one bucket.
type BucketResult struct {
	Summary
	Rows []Row `json:"rows"`
}

// Report is the JSON document written after a run.
type Report struct {
	EvaluatedAt time.Time               `json:"evaluated_at"`
	Model       string                  `json:"model"`
	MinAccuracy float64                 `json:"min_accuracy"`
	Overall     Summary                 `json:"overall"`
	Buckets     map[string]BucketResult `json:"buckets"`
}

// Passed reports whether overall accuracy meets the threshold.
func (r *Report) Passed() bool {
	return r.Overall.Accuracy >= r.MinAccuracy
}

// SystemInstruction is the classifier prompt for tools.
func SystemInstruction(tools []string) string {
	allowed := append(append([]string(nil), tools...), NoTool)
	return strings.Join([]string{
		"You are evaluating whether a user message should route to a PromptFill tool.",
		"Return exactly one token and no explanation.",
		"Allowed values: " + strings.Join(allowed, ", ") + ".",
		"Use NONE if no PromptFill tool should be selected.",
	}, " ")
}

var (
	edgeBackticks = regexp.MustCompile("^`+|`+$")
	nonIdentifier = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// NormalizePrediction maps raw model output onto one of tools or NoTool.
// Output that merely contains a tool name still counts as that tool.
func NormalizePrediction(raw string, tools []string) string {
	cleaned := edgeBackticks.ReplaceAllString(strings.TrimSpace(raw), "")
	cleaned = strings.ToLower(nonIdentifier.ReplaceAllString(cleaned, ""))
	if cleaned == "" || cleaned == "none" {
		return NoTool
	}
	for _, tool := range tools {
		if cleaned == tool || strings.Contains(cleaned, tool) {
			return tool
		}
	}
	return NoTool
}

// Validate checks the run options.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Model) == "" {
		return fmt.Errorf("model is required")
	}
	if len(o.Tools) == 0 {
		return fmt.Errorf("at least one tool is required")
	}
	if o.MinAccuracy <= 0 || o.MinAccuracy > 1 {
		return fmt.Errorf("min accuracy must be in (0, 1], got %v", o.MinAccuracy)
	}
	return nil
}

// Run classifies every golden prompt and aggregates the results. The first
// model failure aborts the run.
func Run(ctx context.Context, model Completer, golden *Golden, opts Options) (*Report, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = 1
	}

	instruction := SystemInstruction(opts.Tools)
	temperature := 0.0
	maxTokens := 12

	rows := make(map[string][]Row, len(Buckets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, bucket := range Buckets {
		cases := golden.Bucket(bucket)
		bucketRows := make([]Row, len(cases))
		rows[bucket] = bucketRows

		for i, c := range cases {
			g.Go(func() error {
				resp, err := model.Complete(gctx, &llm.Request{
					Model: opts.Model,
					Messages: []llm.Message{
						{Role: "system", Content: instruction},
						{Role: "user", Content: "Prompt: " + c.Prompt},
					},
					Temperature: &temperature,
					MaxTokens:   &maxTokens,
				})
				if err != nil {
					return fmt.Errorf("classify %s prompt %d: %w", bucket, i, err)
				}

				raw := strings.TrimSpace(resp.Text)
				prediction := NormalizePrediction(raw, opts.Tools)
				bucketRows[i] = Row{
					Bucket:         bucket,
					Prompt:         c.Prompt,
					Expected:       c.Expected(),
					Prediction:     prediction,
					RawModelOutput: raw,
					Correct:        prediction == c.Expected(),
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		EvaluatedAt: now().UTC(),
		Model:       opts.Model,
		MinAccuracy: opts.MinAccuracy,
		Buckets:     make(map[string]BucketResult, len(Buckets)),
	}
	var all []Row
	for _, bucket := range Buckets {
		report.Buckets[bucket] = BucketResult{Summary: summarize(rows[bucket]), Rows: rows[bucket]}
		all = append(all, rows[bucket]...)
	}
	report.Overall = summarize(all)
	return report, nil
}

func summarize(rows []Row) Summary {
	s := Summary{Total: len(rows)}
	for _, row := range rows {
		if row.Correct {
			s.Passed++
		}
	}
	if s.Total > 0 {
		s.Accuracy = float64(s.Passed) / float64(s.Total)
	}
	return s
}

// WriteReport writes report as indented JSON, creating parent directories.
func WriteReport(path string, report *Report) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// LoadEnvFile loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}
