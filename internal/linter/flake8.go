package linter

import (
	"bufio"
	"bytes"
	"errors"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/codeatlas/codeatlas-go/internal/models"
)

// flake8 prints one finding per line: path:line:col: CODE message
var flake8Line = regexp.MustCompile(`^(.+?):(\d+):(\d+):\s+([A-Z]\d+)\s+(.*)$`)

// Flake8Linter shells out to flake8 for Python files. If the tool is not on
// PATH the linter declines every file.
type Flake8Linter struct {
	binary string
	logger *logrus.Logger
}

// NewFlake8Linter creates a flake8 linter, locating the binary on PATH.
func NewFlake8Linter(logger *logrus.Logger) *Flake8Linter {
	binary, err := exec.LookPath("flake8")
	if err != nil {
		logger.Debug("flake8 not found on PATH, linting disabled")
		binary = ""
	}
	return &Flake8Linter{binary: binary, logger: logger}
}

func (l *Flake8Linter) CanLint(path string) bool {
	return l.binary != "" && strings.ToLower(filepath.Ext(path)) == ".py"
}

// LintFile runs flake8 on one file. flake8 exits nonzero when findings
// exist, so the exit status is ignored and only unparseable output is an
// error.
func (l *Flake8Linter) LintFile(path string) ([]models.LintError, error) {
	cmd := exec.Command(l.binary, path)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, err
		}
	}
	return ParseFlake8Output(path, out), nil
}

// ParseFlake8Output parses flake8's default output format into findings.
// Lines that do not match the format are skipped.
func ParseFlake8Output(path string, out []byte) []models.LintError {
	var findings []models.LintError
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := flake8Line.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		line, _ := strconv.Atoi(m[2])
		col, _ := strconv.Atoi(m[3])
		findings = append(findings, models.LintError{
			FilePath: path,
			Line:     line,
			Column:   col,
			Message:  m[5],
			Type:     m[4],
			RuleID:   m[4],
			Severity: MapSeverity(m[4]),
			Source:   "flake8",
		})
	}
	return findings
}
