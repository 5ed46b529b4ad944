// Package ibischk wraps the external IBIS validator: it runs the
// checker binary over a generated .ibs file and classifies its stdout
// into errors, warnings, and notes.
package ibischk

import (
	"context"
	"os/exec"
	"regexp"
	"strings"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// Result is the classified validator output.
type Result struct {
	Errors   []string
	Warnings []string
	Notes    []string
}

// Clean reports whether the validator raised no real errors. Warnings
// and notes do not fail a build.
func (r *Result) Clean() bool { return len(r.Errors) == 0 }

var (
	errorRe   = regexp.MustCompile(`^(ERROR|FATAL)`)
	warningRe = regexp.MustCompile(`^WARNING`)
	noteRe    = regexp.MustCompile(`^NOTE`)
	// Trailing "N errors, M warnings" style summary lines restate what
	// was already counted.
	summaryRe = regexp.MustCompile(`^\d+\s+(error|warning|note)s?\b`)
)

// Run invokes the validator on one .ibs file. A non-zero exit status is
// expected when the file has problems; only a failure to launch the
// binary at all is an error here.
func Run(ctx context.Context, bin, ibsPath string) (*Result, error) {
	cmd := exec.CommandContext(ctx, bin, ibsPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "cannot run %s", bin)
		}
	}
	res := Classify(string(out))
	glog.Infof("%s %s: %d errors, %d warnings, %d notes",
		bin, ibsPath, len(res.Errors), len(res.Warnings), len(res.Notes))
	return res, nil
}

// Classify splits validator output lines by severity prefix, dropping
// the summary noise.
func Classify(out string) *Result {
	res := &Result{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || summaryRe.MatchString(strings.ToLower(line)) {
			continue
		}
		switch {
		case errorRe.MatchString(line):
			res.Errors = append(res.Errors, line)
		case warningRe.MatchString(line):
			res.Warnings = append(res.Warnings, line)
		case noteRe.MatchString(line):
			res.Notes = append(res.Notes, line)
		}
	}
	return res
}
