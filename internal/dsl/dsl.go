// Package dsl is the build-description host: a small Starlark dialect
// (Design Note 9's "small DSL or scripted host") whose builtins register
// checkouts, packages and deployments directly against a
// internal/builder.Builder, per spec.md §4.5's load_description() operation
// and §6's description-file contract. Grounded on original_source's
// (inferred) muddled/deb.py-style builder-description vocabulary
// (checkout()/package()/deployment() calls reading like the Python
// original's), hosted on go.starlark.net the way a sandboxed configuration
// language is typically embedded in Go tooling.
package dsl

import (
	"context"
	"strings"

	"go.starlark.net/starlark"

	"github.com/muddle-build/muddle/internal/action"
	"github.com/muddle-build/muddle/internal/builder"
	"github.com/muddle-build/muddle/internal/depend"
	"github.com/muddle-build/muddle/internal/label"
	"github.com/muddle-build/muddle/internal/merrors"
	"github.com/muddle-build/muddle/internal/mlog"
	"github.com/muddle-build/muddle/internal/repo"
	"github.com/muddle-build/muddle/internal/subdomain"
)

// Host carries the collaborators a build description's builtins need
// beyond the Builder itself - the VCS fetcher and subdomain checkout hook,
// both external-I/O boundaries spec.md §1 keeps out of the core.
type Host struct {
	Fetcher          action.VCSFetcher
	SubdomainCheckout subdomain.CheckoutFunc
}

// Load reads the Starlark file at scriptPath and executes it with a fresh
// set of builtins bound to b, per spec.md §4.5's load_description(). Errors
// from the script (syntax errors, a builtin rejecting bad arguments) are
// reported as GiveUp - a broken build description is a user-level problem.
func (h Host) Load(ctx context.Context, b *builder.Builder, scriptPath string) error {
	predeclared := h.builtins(ctx, b)
	thread := &starlark.Thread{
		Name: "muddle-description",
		Print: func(_ *starlark.Thread, msg string) {
			mlog.Logit(mlog.DSL, msg, map[string]interface{}{"script": scriptPath})
		},
	}
	_, err := starlark.ExecFile(thread, scriptPath, nil, predeclared)
	if err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return merrors.NewGiveUp("build description %s: %s", scriptPath, evalErr.Backtrace())
		}
		return merrors.NewGiveUp("build description %s: %v", scriptPath, err)
	}
	return nil
}

// LoadFunc adapts Load to internal/builder.LoadDescription's callback
// signature, so a command entry point can do
// `b.LoadDescription(ctx, dsl.Host{...}.LoadFunc(scriptPath))`.
func (h Host) LoadFunc(scriptPath string) func(context.Context, *builder.Builder) error {
	return func(ctx context.Context, b *builder.Builder) error {
		return h.Load(ctx, b, scriptPath)
	}
}

func (h Host) builtins(ctx context.Context, b *builder.Builder) starlark.StringDict {
	return starlark.StringDict{
		"checkout":            starlark.NewBuiltin("checkout", h.builtinCheckout(b)),
		"package":             starlark.NewBuiltin("package", h.builtinPackage(b)),
		"deb_package":         starlark.NewBuiltin("deb_package", h.builtinDebPackage(b)),
		"deployment":          starlark.NewBuiltin("deployment", h.builtinDeployment(b)),
		"cpio_deployment":     starlark.NewBuiltin("cpio_deployment", h.builtinCPIODeployment(b)),
		"distribute_package":  starlark.NewBuiltin("distribute_package", h.builtinDistributePackage(b)),
		"distribute_checkout": starlark.NewBuiltin("distribute_checkout", h.builtinDistributeCheckout(b)),
		"default_roles":       starlark.NewBuiltin("default_roles", h.builtinDefaultRoles(b)),
		"default_deployments": starlark.NewBuiltin("default_deployments", h.builtinDefaultDeployments(b)),
		"include_domain":      starlark.NewBuiltin("include_domain", h.builtinIncludeDomain(ctx, b)),
	}
}

func stringList(v *starlark.List) []string {
	if v == nil {
		return nil
	}
	out := make([]string, 0, v.Len())
	for i := 0; i < v.Len(); i++ {
		out = append(out, string(v.Index(i).(starlark.String)))
	}
	return out
}

func (h Host) builtinCheckout(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, vcs, url, directory, branch, revision string
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"name", &name, "vcs", &vcs, "url", &url,
			"directory?", &directory, "branch?", &branch, "revision?", &revision,
		); err != nil {
			return nil, err
		}
		kind, err := repo.Lookup(vcs)
		if err != nil {
			return nil, err
		}
		r := repo.Repository{VCS: vcs, BaseURL: url, RelativePath: name, Branch: branch, Revision: revision}
		cd := repo.NewCheckoutData(kind, r, directory, "", name)
		l := label.New(label.Checkout, name, "", label.Wildcard, "")
		b.AddCheckout(l, cd)

		act := action.Checkout{Repo: r, DestDir: cd.Location(), Fetcher: h.Fetcher}
		for _, tag := range []string{label.CheckedOut, label.Pulled, label.Merged} {
			b.RuleSet().Add(depend.NewRule(label.New(label.Checkout, name, "", tag, ""), act))
		}
		return starlark.None, nil
	}
}

func (h Host) builtinPackage(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, role, sourceDir string
		var checkouts, deps *starlark.List
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"name", &name, "role", &role,
			"checkouts?", &checkouts, "deps?", &deps, "source_dir?", &sourceDir,
		); err != nil {
			return nil, err
		}
		if sourceDir == "" {
			sourceDir = name
		}
		act := action.Make{SourceDir: sourceDir}
		registerPackagePipeline(b, name, role, act, checkoutLabels(stringList(checkouts)), depLabels(stringList(deps)))
		return starlark.None, nil
	}
}

func (h Host) builtinDebPackage(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, role, packagePath string
		var deps *starlark.List
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"name", &name, "role", &role, "package_path", &packagePath, "deps?", &deps,
		); err != nil {
			return nil, err
		}
		act := action.DebExtract{PackagePath: packagePath, RoleDir: role}
		registerPackagePipeline(b, name, role, act, nil, depLabels(stringList(deps)))
		return starlark.None, nil
	}
}

func (h Host) builtinDeployment(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name string
		var deps *starlark.List
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "deps?", &deps); err != nil {
			return nil, err
		}
		target := label.New(label.Deployment, name, "", label.Deployed, "")
		r := depend.NewRule(target, action.NoOp{})
		for _, d := range depLabels(stringList(deps)) {
			r.AddDep(d)
		}
		b.RuleSet().Add(r)
		b.AddDefaultDeployment(name)
		return starlark.None, nil
	}
}

func (h Host) builtinCPIODeployment(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, archivePath, instructionsRoot string
		var roles, deps *starlark.List
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"name", &name, "roles", &roles, "archive_path", &archivePath,
			"instructions_root?", &instructionsRoot, "deps?", &deps,
		); err != nil {
			return nil, err
		}
		act := action.CPIODeployment{
			Roles: stringList(roles), ArchivePath: archivePath, InstructionsRoot: instructionsRoot,
		}
		target := label.New(label.Deployment, name, "", label.Deployed, "")
		r := depend.NewRule(target, act)
		for _, d := range depLabels(stringList(deps)) {
			r.AddDep(d)
		}
		b.RuleSet().Add(r)
		return starlark.None, nil
	}
}

func (h Host) builtinDistributePackage(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, role, distribution string
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "role", &role, "distribution", &distribution); err != nil {
			return nil, err
		}
		act := action.DistributePackage{RoleDir: role, DistributionName: distribution}
		target := label.New(label.Deployment, name, "", label.Distributed, "")
		r := depend.NewRule(target, act)
		r.AddDep(label.New(label.Package, name, role, label.PostInstall, ""))
		b.RuleSet().Add(r)
		return starlark.None, nil
	}
}

func (h Host) builtinDistributeCheckout(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, distribution string
		var exclude *starlark.List
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "distribution", &distribution, "exclude?", &exclude); err != nil {
			return nil, err
		}
		act := action.DistributeCheckout{CheckoutDir: name, DistributionName: distribution, Exclude: stringList(exclude)}
		target := label.New(label.Deployment, name, "", label.Distributed, "")
		r := depend.NewRule(target, act)
		r.AddDep(label.New(label.Checkout, name, "", label.CheckedOut, ""))
		b.RuleSet().Add(r)
		return starlark.None, nil
	}
}

func (h Host) builtinDefaultRoles(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var roles *starlark.List
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "roles", &roles); err != nil {
			return nil, err
		}
		for _, role := range stringList(roles) {
			b.AddDefaultRole(role)
		}
		return starlark.None, nil
	}
}

func (h Host) builtinDefaultDeployments(b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var deployments *starlark.List
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "deployments", &deployments); err != nil {
			return nil, err
		}
		for _, d := range stringList(deployments) {
			b.AddDefaultDeployment(d)
		}
		return starlark.None, nil
	}
}

func (h Host) builtinIncludeDomain(ctx context.Context, b *builder.Builder) starlark.Func {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var name, repoURL, descriptionPath, branch string
		if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
			"name", &name, "repository", &repoURL, "description", &descriptionPath, "branch?", &branch,
		); err != nil {
			return nil, err
		}
		err := subdomain.Include(ctx, b, name, subdomain.Options{
			RepoURL: repoURL, DescriptionPath: descriptionPath, Branch: branch,
			Checkout: h.SubdomainCheckout,
			Load:     h.LoadFunc(descriptionPath),
		})
		if err != nil {
			return nil, err
		}
		return starlark.None, nil
	}
}

// checkoutLabels turns a list of checkout names into checked-out-tagged
// dependency labels.
func checkoutLabels(names []string) []label.Label {
	out := make([]label.Label, 0, len(names))
	for _, n := range names {
		out = append(out, label.New(label.Checkout, n, "", label.CheckedOut, ""))
	}
	return out
}

// depLabels parses "name{role}" strings (or bare "name", meaning any role)
// into package labels at the postinstalled tag - the dependency vocabulary
// a build description's deps=[...] lists use.
func depLabels(specs []string) []label.Label {
	out := make([]label.Label, 0, len(specs))
	for _, spec := range specs {
		name, role := spec, label.Wildcard
		if i := strings.IndexByte(spec, '{'); i >= 0 && strings.HasSuffix(spec, "}") {
			name, role = spec[:i], spec[i+1:len(spec)-1]
		}
		out = append(out, label.New(label.Package, name, role, label.PostInstall, ""))
	}
	return out
}

// registerPackagePipeline registers the standard five-tag package pipeline
// (preconfig -> configured -> built -> installed -> postinstalled) sharing
// one Action - every concrete Action dispatches on the target's tag, the
// way original_source's package actions do - plus standalone clean/
// distclean rules, per spec.md §6's package lifecycle.
func registerPackagePipeline(b *builder.Builder, name, role string, act action.Action, checkouts, deps []label.Label) {
	tags := []string{label.PreConfig, label.Configured, label.Built, label.Installed, label.PostInstall}
	var prev label.Label
	for i, tag := range tags {
		target := label.New(label.Package, name, role, tag, "")
		r := depend.NewRule(target, act)
		if i == 0 {
			for _, co := range checkouts {
				r.AddDep(co)
			}
			for _, d := range deps {
				r.AddDep(d)
			}
		} else {
			r.AddDep(prev)
		}
		b.RuleSet().Add(r)
		prev = target
	}

	for _, tag := range []string{label.Clean, label.DistClean} {
		target := label.New(label.Package, name, role, tag, "")
		r := depend.NewRule(target, act)
		for _, co := range checkouts {
			r.AddDep(co)
		}
		b.RuleSet().Add(r)
	}
}
