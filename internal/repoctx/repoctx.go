// Package repoctx resolves best-effort VCS and user context for discovered
// configuration files. Every failure degrades to empty fields.
package repoctx

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"sync"

	"github.com/agentsh/mcpscope/internal/process"
	"github.com/agentsh/mcpscope/pkg/types"
	"gopkg.in/ini.v1"
)

// Resolver resolves repository and user context. It is safe for concurrent
// use; the git binary is probed once per Resolver.
type Resolver struct {
	runner process.Runner
	logger *slog.Logger
	lookup func() (*user.User, error)
	getenv func(string) string

	gitOnce sync.Once
	gitOK   bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRunner sets the runner used for git invocations.
func WithRunner(r process.Runner) Option { return func(rs *Resolver) { rs.runner = r } }

// WithLogger sets the logger. A nil logger discards output.
func WithLogger(l *slog.Logger) Option { return func(rs *Resolver) { rs.logger = l } }

// WithUserLookup replaces os/user.Current and os.Getenv.
func WithUserLookup(lookup func() (*user.User, error), getenv func(string) string) Option {
	return func(rs *Resolver) {
		rs.lookup = lookup
		rs.getenv = getenv
	}
}

// New returns a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		runner: process.ExecRunner{},
		lookup: user.Current,
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return r
}

// Repo resolves the repository enclosing path (a file or directory).
// It returns nil when path is not inside a git working tree.
func (r *Resolver) Repo(ctx context.Context, path string) *types.RepoContext {
	start := path
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		start = filepath.Dir(path)
	}
	root, gitDir, ok := FindRoot(start)
	if !ok {
		return nil
	}

	rc := &types.RepoContext{Name: filepath.Base(root)}
	remote := r.remoteURL(ctx, root, gitDir)
	if remote != "" {
		p := ParseRemote(remote)
		rc.RemoteURL = p.URL
		rc.Owner = p.Owner
		if p.Name != "" {
			rc.Name = p.Name
		}
	}
	rc.Branch = r.branch(ctx, root, gitDir)
	return rc
}

// User resolves the local user name and global git email.
func (r *Resolver) User(ctx context.Context) types.UserContext {
	var uc types.UserContext
	if u, err := r.lookup(); err == nil && u != nil {
		uc.Username = u.Username
	}
	if uc.Username == "" {
		uc.Username = r.getenv("USER")
	}
	if uc.Username == "" {
		uc.Username = r.getenv("USERNAME")
	}
	// DOMAIN\user on Windows
	if i := strings.LastIndex(uc.Username, `\`); i >= 0 {
		uc.Username = uc.Username[i+1:]
	}
	if r.hasGit(ctx) {
		uc.Email = r.git(ctx, "config", "--global", "--get", "user.email")
	}
	return uc
}

// FindRoot walks up from dir looking for a .git directory or gitdir file.
// It returns the working tree root and the resolved git directory.
func FindRoot(dir string) (root, gitDir string, ok bool) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", "", false
	}
	for cur := abs; ; {
		candidate := filepath.Join(cur, ".git")
		if fi, err := os.Stat(candidate); err == nil {
			if fi.IsDir() {
				return cur, candidate, true
			}
			if gd := readGitdirFile(candidate); gd != "" {
				if !filepath.IsAbs(gd) {
					gd = filepath.Join(cur, gd)
				}
				return cur, gd, true
			}
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return "", "", false
		}
		cur = parent
	}
}

func readGitdirFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	line := strings.TrimSpace(string(data))
	if gd, ok := strings.CutPrefix(line, "gitdir:"); ok {
		return strings.TrimSpace(gd)
	}
	return ""
}

func (r *Resolver) remoteURL(ctx context.Context, root, gitDir string) string {
	if r.hasGit(ctx) {
		if out := r.git(ctx, "-C", root, "config", "--get", "remote.origin.url"); out != "" {
			return out
		}
	}
	return remoteFromConfig(commonDir(gitDir))
}

// remoteFromConfig reads remote.origin.url from a git config file.
func remoteFromConfig(gitDir string) string {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		Loose:                   true,
		Insensitive:             false,
		IgnoreInlineComment:     true,
		AllowBooleanKeys:        true,
		SkipUnrecognizableLines: true,
	}, filepath.Join(gitDir, "config"))
	if err != nil {
		return ""
	}
	sec, err := cfg.GetSection(`remote "origin"`)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(sec.Key("url").String())
}

// commonDir follows a worktree's commondir pointer to the shared git dir.
func commonDir(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "commondir"))
	if err != nil {
		return gitDir
	}
	cd := strings.TrimSpace(string(data))
	if cd == "" {
		return gitDir
	}
	if !filepath.IsAbs(cd) {
		cd = filepath.Join(gitDir, cd)
	}
	return filepath.Clean(cd)
}

func (r *Resolver) branch(ctx context.Context, root, gitDir string) string {
	if r.hasGit(ctx) {
		b := r.git(ctx, "-C", root, "rev-parse", "--abbrev-ref", "HEAD")
		if b != "" && b != "HEAD" {
			return b
		}
		if b == "HEAD" {
			if sha := r.git(ctx, "-C", root, "rev-parse", "--short", "HEAD"); sha != "" {
				return sha
			}
		}
	}
	return BranchFromHead(gitDir)
}

// BranchFromHead reads <gitDir>/HEAD. A detached HEAD yields the short
// commit hash.
func BranchFromHead(gitDir string) string {
	data, err := os.ReadFile(filepath.Join(gitDir, "HEAD"))
	if err != nil {
		return ""
	}
	head := strings.TrimSpace(string(data))
	if ref, ok := strings.CutPrefix(head, "ref:"); ok {
		ref = strings.TrimSpace(ref)
		return strings.TrimPrefix(ref, "refs/heads/")
	}
	if len(head) >= 7 {
		return head[:7]
	}
	return head
}

func (r *Resolver) hasGit(ctx context.Context) bool {
	r.gitOnce.Do(func() {
		out, err := r.runner.Run(ctx, "git", "--version")
		r.gitOK = err == nil && strings.HasPrefix(strings.TrimSpace(string(out)), "git version")
		if !r.gitOK {
			r.logger.Debug("git unavailable, using file fallbacks", "error", err)
		}
	})
	return r.gitOK
}

func (r *Resolver) git(ctx context.Context, args ...string) string {
	out, err := r.runner.Run(ctx, "git", args...)
	if err != nil {
		r.logger.Debug("git invocation failed", "args", args, "error", err)
		return ""
	}
	return strings.TrimSpace(string(out))
}
