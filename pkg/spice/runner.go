package spice

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"

	"spice2ibis/internal/consts"
)

// RunFunc executes one simulator invocation. stdoutTo, when non-empty,
// names the file the simulator's stdout must be redirected into; all
// remaining chatter is appended to msgPath. Tests substitute this to
// simulate simulator behavior.
type RunFunc func(ctx context.Context, argv []string, stdoutTo, msgPath string) error

// Env is the execution environment shared by every curve run.
type Env struct {
	Dialect Dialect
	Command string // simulator binary (path or name)
	WorkDir string
	MockDir string // pre-seeded fallback outputs, may be empty
	Cleanup bool
	Iterate bool // reuse existing output files when they hold data
	Timeout time.Duration

	Run RunFunc // nil means Exec
}

func (e *Env) timeout() time.Duration {
	if e.Timeout <= 0 {
		return consts.RunTimeout
	}
	return e.Timeout
}

func (e *Env) runner() RunFunc {
	if e.Run != nil {
		return e.Run
	}
	return Exec
}

// Exec is the real RunFunc: it invokes the simulator and appends its
// output to the .msg log.
func Exec(ctx context.Context, argv []string, stdoutTo, msgPath string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)

	msg, err := os.OpenFile(msgPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return errors.Wrapf(err, "cannot open log %s", msgPath)
	}
	defer msg.Close()

	if stdoutTo != "" {
		out, err := os.Create(stdoutTo)
		if err != nil {
			return errors.Wrapf(err, "cannot create %s", stdoutTo)
		}
		defer out.Close()
		cmd.Stdout = out
		cmd.Stderr = msg
	} else {
		cmd.Stdout = msg
		cmd.Stderr = msg
	}
	return cmd.Run()
}

// Preflight verifies the simulator binary exists before anything is
// parsed or simulated.
func Preflight(command string) error {
	name := command
	if fields := strings.Fields(command); len(fields) > 0 {
		name = fields[0]
	}
	if _, err := exec.LookPath(name); err != nil {
		return errors.Wrapf(err, "spice simulator %q not found", name)
	}
	return nil
}

// Status classifies one simulator run from its output and log text.
type Status struct {
	Aborted      bool
	NonConverged bool
}

// Retry is warranted only when both failure modes are present at once.
func (s Status) Retry() bool { return s.Aborted && s.NonConverged }

func (s Status) Failed() bool { return s.Aborted || s.NonConverged }

// Classify scrapes the output and message files for the dialect's
// failure markers. An aborted run whose output holds no data rows is
// also flagged non-convergent.
func Classify(d Dialect, outPath, msgPath string) Status {
	var st Status

	outText := readAll(outPath)
	msgText := ""
	if d.CheckMsgFile() {
		msgText = readAll(msgPath)
	}
	both := outText + "\n" + msgText

	if m := d.AbortMarker(); m != "" && containsAny(both, []string{m}) {
		st.Aborted = true
	}
	if containsAny(both, abortNeedles) {
		st.Aborted = true
	}
	if m := d.ConvergenceMarker(); m != "" && containsAny(both, []string{m}) {
		st.NonConverged = true
	}
	if containsAny(both, convergeNeedles) {
		st.NonConverged = true
	}
	if st.Aborted && countDataRows(d, outText) == 0 {
		st.NonConverged = true
	}
	return st
}

func readAll(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(data)
}

// runCorner drives the build/run/check/retry state machine for one
// corner of a job. It returns the output file path, or an error after
// the retry budget is spent.
func runCorner(ctx context.Context, env *Env, j *Job, corner int) (string, error) {
	base := j.Base(corner)
	inPath := filepath.Join(env.WorkDir, base+".spi")
	outPath := filepath.Join(env.WorkDir, base+".out")
	msgPath := filepath.Join(env.WorkDir, base+".msg")

	if env.Iterate && countDataRows(env.Dialect, readAll(outPath)) > 0 {
		glog.Infof("reusing existing %s", outPath)
		return outPath, nil
	}

	var st Status
	for attempt := 0; attempt < consts.MaxSpiceRetries; attempt++ {
		start, span := nextWindow(attempt, j.Sweep.Start, j.Sweep.Span)
		if attempt > 0 {
			glog.Warningf("%s pin %s (%s): retry %d with window [%g, %g]",
				j.Curve, j.Pin.Name, cornerName(corner), attempt, start, start+span)
		}

		deck, err := BuildDeck(env.Dialect, j, corner, start, span, j.Sweep.Step)
		if err != nil {
			return "", err
		}
		if err := os.WriteFile(inPath, []byte(deck), 0o644); err != nil {
			return "", errors.Wrapf(err, "cannot write deck %s", inPath)
		}
		// Stale results from the previous attempt must not leak into
		// this attempt's classification.
		os.Remove(outPath)
		os.Remove(msgPath)

		argv, stdoutTo := env.Dialect.Argv(env.Command, inPath, outPath, msgPath)
		runCtx, cancel := context.WithTimeout(ctx, env.timeout())
		err = env.runner()(runCtx, argv, stdoutTo, msgPath)
		cancel()
		if err != nil {
			// Timeouts and spawn failures are terminal for the corner;
			// the retry windows only address convergence trouble.
			return "", errors.Wrapf(err, "%s run failed for pin %s", j.Curve, j.Pin.Name)
		}

		fixupHspiceListing(env, outPath)

		st = Classify(env.Dialect, outPath, msgPath)
		if !st.Retry() {
			break
		}
	}
	if st.Retry() {
		return "", errors.Errorf("%s pin %s (%s): simulation aborted without convergence after %d windows",
			j.Curve, j.Pin.Name, cornerName(corner), consts.MaxSpiceRetries)
	}
	if st.Failed() {
		glog.Warningf("%s pin %s (%s): simulator reported %+v, parsing what it produced",
			j.Curve, j.Pin.Name, cornerName(corner), st)
	}
	return outPath, nil
}

// fixupHspiceListing renames the .lis file some hspice builds emit in
// place of the requested .out.
func fixupHspiceListing(env *Env, outPath string) {
	if env.Dialect.Name() != "hspice" {
		return
	}
	if _, err := os.Stat(outPath); err == nil {
		return
	}
	lis := strings.TrimSuffix(outPath, ".out") + ".lis"
	if _, err := os.Stat(lis); err == nil {
		if err := os.Rename(lis, outPath); err != nil {
			glog.Warningf("cannot rename %s: %v", lis, err)
		}
	}
}

// cleanupFiles removes one corner's intermediates when cleanup is on.
func cleanupFiles(env *Env, j *Job, corner int) {
	if !env.Cleanup {
		return
	}
	base := j.Base(corner)
	for _, ext := range []string{".spi", ".out", ".msg"} {
		os.Remove(filepath.Join(env.WorkDir, base+ext))
	}
}

// mockFallback copies a pre-seeded output file over a failed corner's
// result, if one was provided. Used by ramp and waveform extraction
// only, and only once per corner.
func mockFallback(env *Env, j *Job, corner int) (string, bool) {
	if env.MockDir == "" {
		return "", false
	}
	base := j.Base(corner)
	src := filepath.Join(env.MockDir, base+".out")
	data, err := os.ReadFile(src)
	if err != nil {
		return "", false
	}
	dst := filepath.Join(env.WorkDir, base+".out")
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		glog.Warningf("cannot copy mock output %s: %v", src, err)
		return "", false
	}
	glog.Warningf("%s pin %s (%s): using mock output %s", j.Curve, j.Pin.Name, cornerName(corner), src)
	return dst, true
}
