// Copyright 2026 The Workery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command testreport merges `go test -json` output with the TestPurpose
// annotations found in _test.go files and writes JSON and Markdown reports.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const modulePath = "github.com/over55/workery/"

// Annotations are the header fields of a documented test.
type Annotations struct {
	Purpose     string `json:"purpose,omitempty"`
	Scope       string `json:"scope,omitempty"`
	Security    string `json:"security,omitempty"`
	Permissions string `json:"permissions,omitempty"`
	Expected    string `json:"expected,omitempty"`
	TestCaseID  string `json:"test_case_id,omitempty"`
}

// Result is the outcome of one test or subtest.
type Result struct {
	Name        string      `json:"name"`
	Package     string      `json:"package"`
	Category    string      `json:"category"`
	Status      string      `json:"status"`
	Elapsed     float64     `json:"elapsed_seconds"`
	Failure     string      `json:"failure_reason,omitempty"`
	Annotations Annotations `json:"annotations"`
}

// Report is the whole run.
type Report struct {
	GeneratedAt time.Time `json:"generated_at"`
	Total       int       `json:"total"`
	Passed      int       `json:"passed"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	Results     []Result  `json:"results"`
}

type testEvent struct {
	Action  string  `json:"Action"`
	Package string  `json:"Package"`
	Test    string  `json:"Test"`
	Elapsed float64 `json:"Elapsed"`
	Output  string  `json:"Output"`
}

var headerFields = map[string]func(*Annotations, string){
	"TestPurpose:":  func(a *Annotations, v string) { a.Purpose = v },
	"Scope:":        func(a *Annotations, v string) { a.Scope = v },
	"Security:":     func(a *Annotations, v string) { a.Security = v },
	"Permissions:":  func(a *Annotations, v string) { a.Permissions = v },
	"Expected:":     func(a *Annotations, v string) { a.Expected = v },
	"Test Case ID:": func(a *Annotations, v string) { a.TestCaseID = v },
}

func main() {
	var input, outJSON, outMD, title, category string
	cmd := &cobra.Command{
		Use:   "testreport",
		Short: "Build a test report from go test -json output",
		RunE: func(cmd *cobra.Command, args []string) error {
			annotations, err := scanAnnotations(".")
			if err != nil {
				return err
			}
			results, err := readEvents(input, annotations)
			if err != nil {
				return err
			}
			if category != "" {
				results = filterCategory(results, category)
			}
			report := summarize(results)
			if err := writeJSON(outJSON, report); err != nil {
				return err
			}
			if err := writeMarkdown(outMD, title, report); err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d tests failed", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "input", "", "go test -json output file")
	cmd.Flags().StringVar(&outJSON, "out-json", "test-report.json", "JSON report path")
	cmd.Flags().StringVar(&outMD, "out-md", "test-report.md", "Markdown report path")
	cmd.Flags().StringVar(&title, "title", "Test Report", "report title")
	cmd.Flags().StringVar(&category, "category", "", "only include this category")
	_ = cmd.MarkFlagRequired("input")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// scanAnnotations maps "<package>.<TestName>" to the test's header fields.
func scanAnnotations(root string) (map[string]Annotations, error) {
	out := make(map[string]Annotations)
	fset := token.NewFileSet()
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if name := d.Name(); path != root && (strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(path, "_test.go") {
			return nil
		}
		file, err := parser.ParseFile(fset, path, nil, parser.ParseComments)
		if err != nil {
			return nil
		}
		pkg := modulePath + filepath.ToSlash(filepath.Dir(path))
		for _, decl := range file.Decls {
			fn, ok := decl.(*ast.FuncDecl)
			if !ok || fn.Doc == nil || !strings.HasPrefix(fn.Name.Name, "Test") {
				continue
			}
			var a Annotations
			for _, c := range fn.Doc.List {
				text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
				for prefix, set := range headerFields {
					if v, ok := strings.CutPrefix(text, prefix); ok {
						set(&a, strings.TrimSpace(v))
					}
				}
			}
			out[pkg+"."+fn.Name.Name] = a
		}
		return nil
	})
	return out, err
}

func readEvents(path string, annotations map[string]Annotations) ([]Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open test output: %w", err)
	}
	defer f.Close()

	byKey := make(map[string]*Result)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev testEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil || ev.Test == "" {
			continue
		}
		key := ev.Package + "." + ev.Test
		res, ok := byKey[key]
		if !ok {
			parent, _, _ := strings.Cut(ev.Test, "/")
			res = &Result{
				Name:        ev.Test,
				Package:     ev.Package,
				Category:    category(ev.Package),
				Annotations: annotations[ev.Package+"."+parent],
			}
			byKey[key] = res
		}
		switch ev.Action {
		case "pass", "fail":
			res.Status = ev.Action
			res.Elapsed = ev.Elapsed
		case "skip":
			res.Status = "skip"
		case "output":
			if res.Status == "" {
				res.Failure += ev.Output
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read test output: %w", err)
	}

	results := make([]Result, 0, len(byKey))
	for _, r := range byKey {
		if r.Status != "fail" {
			r.Failure = ""
		}
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Category != results[j].Category {
			return results[i].Category < results[j].Category
		}
		if results[i].Package != results[j].Package {
			return results[i].Package < results[j].Package
		}
		return results[i].Name < results[j].Name
	})
	return results, nil
}

func category(pkg string) string {
	rel := strings.TrimPrefix(pkg, modulePath)
	switch {
	case strings.HasPrefix(rel, "internal/tenant"), strings.HasPrefix(rel, "internal/provision"):
		return "Tenancy"
	case strings.HasPrefix(rel, "internal/identity"), strings.HasPrefix(rel, "internal/session"),
		strings.HasPrefix(rel, "internal/accesscode"), strings.HasPrefix(rel, "internal/authz"):
		return "Access"
	case strings.HasPrefix(rel, "internal/workorder"), strings.HasPrefix(rel, "internal/party"):
		return "Operations"
	case strings.HasPrefix(rel, "internal/search"), strings.HasPrefix(rel, "internal/archive"):
		return "Search"
	case strings.HasPrefix(rel, "internal/store"):
		return "Storage"
	case strings.HasPrefix(rel, "internal/transport"):
		return "API"
	}
	return "Other"
}

func filterCategory(results []Result, want string) []Result {
	out := results[:0]
	for _, r := range results {
		if strings.EqualFold(r.Category, want) {
			out = append(out, r)
		}
	}
	return out
}

func summarize(results []Result) Report {
	r := Report{GeneratedAt: time.Now().UTC(), Results: results, Total: len(results)}
	for _, res := range results {
		switch res.Status {
		case "pass":
			r.Passed++
		case "fail":
			r.Failed++
		case "skip":
			r.Skipped++
		}
	}
	return r
}

func writeJSON(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeMarkdown(path, title string, report Report) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Workery %s\n\n", title)
	fmt.Fprintf(&sb, "Generated %s\n\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "| Total | Passed | Failed | Skipped |\n|---|---|---|---|\n| %d | %d | %d | %d |\n\n",
		report.Total, report.Passed, report.Failed, report.Skipped)

	current := ""
	for _, r := range report.Results {
		if r.Category != current {
			current = r.Category
			fmt.Fprintf(&sb, "\n## %s\n\n| Test | Case | Status | Purpose |\n|---|---|---|---|\n", current)
		}
		fmt.Fprintf(&sb, "| `%s` | %s | %s | %s |\n", r.Name, r.Annotations.TestCaseID, r.Status, r.Annotations.Purpose)
	}

	var failures []Result
	for _, r := range report.Results {
		if r.Status == "fail" {
			failures = append(failures, r)
		}
	}
	if len(failures) > 0 {
		sb.WriteString("\n## Failures\n")
		for _, r := range failures {
			fmt.Fprintf(&sb, "\n### %s\n\n```\n%s```\n", r.Name, r.Failure)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sb.String()), 0o644)
}
