// Package gitprobe queries a repository's metadata by shelling out to the
// git CLI. Each probe is a single short-lived invocation (or a short chain)
// with its own timeout, so one wedged repository can never stall a whole
// refresh pass. Probes never return Go errors to the caller: every outcome
// is a tagged Result, and hard errors are additionally delivered to the
// configured reporter for the error console.
package gitprobe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jturner86/lzm/internal/repo"
)

// DefaultTimeout bounds a single git invocation. Dozens to hundreds of
// repositories are probed per pass, so this stays short.
const DefaultTimeout = 2 * time.Second

// readEnv is set on every probe invocation. GIT_OPTIONAL_LOCKS=0 keeps
// read-only queries from contending on lock files while the user works in
// the same repository.
var readEnv = []string{"GIT_OPTIONAL_LOCKS=0"}

// Runner executes git with args inside dir, bounded by timeout, and returns
// trimmed stdout. A non-zero exit or a timeout yields a non-nil error whose
// text includes stderr. Tests substitute a fake Runner.
type Runner func(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error)

// execGit is the production Runner.
func execGit(ctx context.Context, dir string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), readEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg == "" {
			errMsg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), errMsg, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// AheadBehind carries the commit counts of a branch against its verified
// upstream. It only exists inside an OK tracking result, so the counts are
// always valid when reachable.
type AheadBehind struct {
	Ahead  int
	Behind int
}

// Reporter receives one human-readable message per hard error.
type Reporter func(msg string)

// Prober runs the four metadata probes for repositories.
type Prober struct {
	run     Runner
	timeout time.Duration
	report  Reporter
	log     zerolog.Logger
}

// Option configures a Prober.
type Option func(*Prober)

// WithTimeout overrides the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithRunner substitutes the command runner (tests).
func WithRunner(r Runner) Option {
	return func(p *Prober) { p.run = r }
}

// WithReporter sets the hard-error reporter.
func WithReporter(r Reporter) Option {
	return func(p *Prober) { p.report = r }
}

// New creates a Prober backed by the git CLI.
func New(log zerolog.Logger, opts ...Option) *Prober {
	p := &Prober{
		run:     execGit,
		timeout: DefaultTimeout,
		report:  func(string) {},
		log:     log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// fail logs a hard error and delivers it to the reporter. op names the
// probe, dir identifies the repository.
func (p *Prober) fail(dir, op string, err error) {
	name := filepath.Base(dir)
	p.log.Warn().Str("repo", name).Str("op", op).Err(err).Msg("probe failed")
	p.report(fmt.Sprintf("%s failed in %s: %v", op, name, err))
}

// LastCommit returns the committer timestamp of the most recent commit.
// A repository with no commits (empty output) is a hard error: every
// scanned working copy is expected to have at least one commit reachable.
func (p *Prober) LastCommit(ctx context.Context, dir string) Result[time.Time] {
	out, err := p.run(ctx, dir, p.timeout, "log", "-1", "--format=%cI")
	if err != nil {
		p.fail(dir, "git log", err)
		return ErroredResult[time.Time]()
	}
	if out == "" {
		p.fail(dir, "git log", fmt.Errorf("no commits"))
		return ErroredResult[time.Time]()
	}
	ts, err := time.Parse(time.RFC3339, out)
	if err != nil {
		p.fail(dir, "git log", fmt.Errorf("bad timestamp %q", out))
		return ErroredResult[time.Time]()
	}
	return Ok(ts)
}

// Branch returns the current branch name (or "HEAD" when detached, which
// git itself reports for a detached head).
func (p *Prober) Branch(ctx context.Context, dir string) Result[string] {
	out, err := p.run(ctx, dir, p.timeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		p.fail(dir, "git rev-parse", err)
		return ErroredResult[string]()
	}
	if out == "" {
		p.fail(dir, "git rev-parse", fmt.Errorf("empty branch name"))
		return ErroredResult[string]()
	}
	return Ok(out)
}

// WorkStatus reports whether the working tree is clean or modified.
func (p *Prober) WorkStatus(ctx context.Context, dir string) Result[repo.WorkStatus] {
	out, err := p.run(ctx, dir, p.timeout, "status", "--porcelain")
	if err != nil {
		p.fail(dir, "git status", err)
		return ErroredResult[repo.WorkStatus]()
	}
	if out == "" {
		return Ok(repo.StatusClean)
	}
	return Ok(repo.StatusModified)
}

// Tracking computes the ahead/behind counts against the configured
// upstream of the current branch.
//
// Every step short of the final count degrades to soft-absence: a branch
// that cannot be resolved, a branch with no remote/merge configuration, or
// an upstream ref that does not resolve all mean "tracking does not apply
// here". Once the upstream ref has been verified to exist, a failing or
// malformed count is a hard error — it contradicts the verification that
// just succeeded.
func (p *Prober) Tracking(ctx context.Context, dir string) Result[AheadBehind] {
	branch, err := p.run(ctx, dir, p.timeout, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || branch == "" {
		return AbsentResult[AheadBehind]()
	}

	remote, err := p.run(ctx, dir, p.timeout, "config", "branch."+branch+".remote")
	if err != nil || remote == "" {
		return AbsentResult[AheadBehind]()
	}
	merge, err := p.run(ctx, dir, p.timeout, "config", "branch."+branch+".merge")
	if err != nil || merge == "" {
		return AbsentResult[AheadBehind]()
	}
	merge = strings.TrimPrefix(merge, "refs/heads/")

	upstream := remote + "/" + merge
	if _, err := p.run(ctx, dir, p.timeout, "rev-parse", "--verify", upstream); err != nil {
		return AbsentResult[AheadBehind]()
	}

	out, err := p.run(ctx, dir, p.timeout, "rev-list", "--left-right", "--count", "HEAD..."+upstream)
	if err != nil {
		p.fail(dir, "git rev-list", err)
		return ErroredResult[AheadBehind]()
	}
	parts := strings.Fields(out)
	if len(parts) != 2 {
		p.fail(dir, "git rev-list", fmt.Errorf("unexpected output %q", out))
		return ErroredResult[AheadBehind]()
	}
	ahead, errA := strconv.Atoi(parts[0])
	behind, errB := strconv.Atoi(parts[1])
	if errA != nil || errB != nil {
		p.fail(dir, "git rev-list", fmt.Errorf("unexpected output %q", out))
		return ErroredResult[AheadBehind]()
	}
	return Ok(AheadBehind{Ahead: ahead, Behind: behind})
}

// BundleResult aggregates the four probe outcomes for one repository.
type BundleResult struct {
	Path       string
	LastCommit Result[time.Time]
	Branch     Result[string]
	WorkStatus Result[repo.WorkStatus]
	Tracking   Result[AheadBehind]
}

// HasError reports whether any probe in the bundle hit a hard error.
func (b BundleResult) HasError() bool {
	return b.LastCommit.Errored() || b.Branch.Errored() ||
		b.WorkStatus.Errored() || b.Tracking.Errored()
}

// Bundle runs all four probes against one repository. The probes are
// independent: an error in one never short-circuits the others.
func (p *Prober) Bundle(ctx context.Context, dir string) BundleResult {
	return BundleResult{
		Path:       dir,
		LastCommit: p.LastCommit(ctx, dir),
		Branch:     p.Branch(ctx, dir),
		WorkStatus: p.WorkStatus(ctx, dir),
		Tracking:   p.Tracking(ctx, dir),
	}
}
