package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeatlas/codeatlas-go/internal/models"
	"github.com/codeatlas/codeatlas-go/internal/parser"
)

var reportCmd = &cobra.Command{
	Use:   "report <file>",
	Short: "Parse a single file and print its structure report",
	Args:  cobra.ExactArgs(1),
	RunE:  runReport,
}

func runReport(cmd *cobra.Command, args []string) error {
	path := args[0]

	parsers := parser.NewRegistry(parser.NewPythonParser())
	p, ok := parsers.ForFile(path)
	if !ok {
		return fmt.Errorf("unsupported file type: %s", path)
	}

	res, err := p.ParseFile(path)
	if err != nil {
		return err
	}
	if res.File == nil {
		return fmt.Errorf("no structure extracted from %s", path)
	}

	cb := models.NewCodebase()
	cb.AddFile(res.File)
	for _, finding := range res.Findings {
		cb.AddLintError(finding)
	}

	report := cb.Report(path)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
