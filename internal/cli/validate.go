// Copyright 2025 Tom Barlow
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

package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/actionschema/internal/log"
	"github.com/tombee/actionschema/pkg/action"
	"github.com/tombee/actionschema/pkg/dependabot"
	"github.com/tombee/actionschema/pkg/errors"
	"github.com/tombee/actionschema/pkg/schema"
	"github.com/tombee/actionschema/pkg/workflow"
)

// result is the validation outcome for one file.
type result struct {
	File  string      `json:"file"`
	Kind  string      `json:"kind"`
	Valid bool        `json:"valid"`
	Error *diagnostic `json:"error,omitempty"`
}

// diagnostic is the machine-readable form of a parse error.
type diagnostic struct {
	Kind    string   `json:"kind,omitempty"`
	Path    string   `json:"path,omitempty"`
	Line    int      `json:"line,omitempty"`
	Column  int      `json:"column,omitempty"`
	Message string   `json:"message"`
	Keys    []string `json:"keys,omitempty"`
}

func newValidateCommand() *cobra.Command {
	var (
		kind    string
		lenient bool
	)

	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Validate manifest files",
		Long: `Validate parses each file into its typed model and reports the first
structural problem found, with the path and source position.

The document kind is detected from the file name: dependabot.yml,
action.yml/action.yaml, and anything else as a workflow. Use --kind to
override detection.

By default unknown keys are errors. With --lenient they are logged and
ignored instead.`,
		Example: `  # Validate a workflow
  actionschema validate .github/workflows/ci.yml

  # Validate an action manifest with machine-readable output
  actionschema validate action.yml --json

  # Tolerate unknown keys
  actionschema validate .github/dependabot.yml --lenient`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")
			quiet, _ := cmd.Flags().GetBool("quiet")

			logger := log.WithComponent(log.New(log.FromEnv()), "validate")

			results := make([]result, 0, len(args))
			failed := false
			for _, file := range args {
				r := validateFile(file, kind, lenient, logger)
				if !r.Valid {
					failed = true
				}
				results = append(results, r)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					if r.Valid {
						if !quiet {
							fmt.Fprintln(cmd.OutOrStdout(),
								RenderOK(r.File+" "+Muted.Render("("+r.Kind+")")))
						}
						continue
					}
					fmt.Fprintln(cmd.ErrOrStderr(), RenderError(r.File+": "+r.Error.Message))
					if r.Error.Path != "" {
						fmt.Fprintln(cmd.ErrOrStderr(), "  "+Muted.Render("at "+r.Error.Path))
					}
				}
			}

			if failed {
				return fmt.Errorf("validation failed")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "Document kind: workflow, action, or dependabot (default: detect)")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "Log and ignore unknown keys instead of failing")

	return cmd
}

func validateFile(file, kind string, lenient bool, logger *slog.Logger) result {
	if kind == "" {
		kind = detectKind(file)
	}
	r := result{File: file, Kind: kind}
	flog := log.WithFile(logger, file)

	var opts []schema.Option
	if lenient {
		opts = append(opts, schema.Lenient(flog))
	}

	data, err := os.ReadFile(file)
	if err != nil {
		flog.Debug("read failed", log.Error(err))
		r.Error = &diagnostic{Message: err.Error()}
		return r
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		flog.Debug("yaml parse failed", log.Error(err))
		r.Error = &diagnostic{Message: err.Error()}
		return r
	}

	switch kind {
	case "workflow":
		_, err = workflow.ParseWorkflow(&node, opts...)
	case "action":
		_, err = action.Parse(&node, opts...)
	case "dependabot":
		_, err = dependabot.Parse(&node, opts...)
	default:
		r.Error = &diagnostic{Message: fmt.Sprintf("unknown document kind %q", kind)}
		return r
	}
	if err != nil {
		r.Error = toDiagnostic(err)
		flog.Debug("validation failed",
			log.KindKey, r.Error.Kind,
			log.PathKey, r.Error.Path,
			log.LineKey, r.Error.Line,
			log.ColumnKey, r.Error.Column)
		return r
	}

	r.Valid = true
	return r
}

func toDiagnostic(err error) *diagnostic {
	var perr *errors.ParseError
	if !errors.As(err, &perr) {
		return &diagnostic{Message: err.Error()}
	}
	return &diagnostic{
		Kind:    string(perr.Kind),
		Path:    perr.Path.String(),
		Line:    perr.Line,
		Column:  perr.Column,
		Message: perr.Message,
		Keys:    perr.Keys,
	}
}

// detectKind infers the document kind from the file name.
func detectKind(file string) string {
	base := strings.ToLower(filepath.Base(file))
	switch base {
	case "dependabot.yml", "dependabot.yaml":
		return "dependabot"
	case "action.yml", "action.yaml":
		return "action"
	default:
		return "workflow"
	}
}
