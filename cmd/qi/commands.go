package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/common-nighthawk/go-figure"
	"github.com/quantum-inspire/qi-go/api"
	"github.com/quantum-inspire/qi-go/auth"
	"github.com/quantum-inspire/qi-go/backends"
	"github.com/quantum-inspire/qi-go/credentials"
	"github.com/quantum-inspire/qi-go/internal/config"
	"github.com/quantum-inspire/qi-go/internal/utils"
	"github.com/quantum-inspire/qi-go/jobs"
	"github.com/quantum-inspire/qi-go/projects"
)

// app wires the config, the credential store, and one session per
// invocation through every command.
type app struct {
	cfg config.Config
	out io.Writer
	in  io.Reader
}

func newApp(out io.Writer) *app {
	return &app{cfg: config.New(), out: out, in: os.Stdin}
}

// session builds the auth session for host, honouring the QI_TOKEN
// override.
func (a *app) session(host string, options ...auth.SessionOption) (*auth.Session, error) {
	dir := a.cfg.GetConfigDir()
	if dir == "" {
		var err error
		if dir, err = credentials.DefaultDir(); err != nil {
			return nil, err
		}
	}
	store := credentials.NewStore(dir)

	if token := a.cfg.GetToken(); token != "" {
		options = append(options, auth.WithStaticToken(token))
	}
	options = append(options, auth.WithLoginTimeout(a.cfg.GetLoginTimeout()))
	return auth.NewSession(host, store, options...), nil
}

// client builds the API client for the configured host.
func (a *app) client() (*api.Client, error) {
	host := a.cfg.GetHost()
	session, err := a.session(host)
	if err != nil {
		return nil, err
	}
	return api.New(host, session), nil
}

func (a *app) resolveHost(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return a.cfg.GetHost()
}

func (a *app) login(ctx context.Context, args []string) error {
	host := a.resolveHost(args)

	figure.NewFigure("Quantum Inspire", "cybermedium", true).Print()
	fmt.Fprintln(a.out)

	session, err := a.session(host, auth.WithAuthURLNotify(func(url string) {
		fmt.Fprintf(a.out, "Please continue logging in by opening:\n\n  %s\n\nin your browser.\n", url)
	}))
	if err != nil {
		return err
	}
	if err := session.Login(ctx); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Login successful for %s\n", host)
	return nil
}

func (a *app) logout(args []string) error {
	host := a.resolveHost(args)
	session, err := a.session(host)
	if err != nil {
		return err
	}
	if err := session.Logout(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged out from %s\n", host)
	return nil
}

func (a *app) upload(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("files upload", flag.ContinueOnError)
	fs.SetOutput(a.out)
	hybrid := fs.Bool("hybrid", false, "submit as a hybrid quantum/classical program")
	shots := fs.Int("shots", 0, "number of shots (0 uses the backend default)")
	project := fs.String("project", "", "submit into an existing project id")
	name := fs.String("name", "", "job name")
	raw := fs.Bool("raw", false, "enable raw data in the result")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return errors.New("files upload: expected <file> <backend_id>")
	}

	program, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("files upload: %w", err)
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	projectMgr := projects.NewManager(client)
	manager := jobs.NewManager(client, projectMgr)

	req := jobs.SubmitRequest{
		Program:        string(program),
		BackendID:      fs.Arg(1),
		ProjectID:      *project,
		Name:           *name,
		RawDataEnabled: *raw,
	}
	if *hybrid {
		req.Type = "hybrid"
	} else {
		req.Type = "quantum"
	}
	if *shots != 0 {
		req.Shots = utils.Ptr(*shots)
	}

	job, err := manager.Submit(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Submitted job %s (project %s, status %s)\n", job.ID, job.ProjectID, job.Status)
	return nil
}

func (a *app) results(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("results get: expected <job_id>")
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	manager := jobs.NewManager(client, projects.NewManager(client))

	result, err := manager.FetchResult(ctx, args[0])
	if err != nil {
		return err
	}

	if len(result.Histogram) == 0 {
		fmt.Fprintln(a.out, result.RawText)
		return nil
	}
	keys := make([]string, 0, len(result.Histogram))
	for k := range result.Histogram {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STATE\tPROBABILITY")
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%g\n", k, result.Histogram[k])
	}
	return w.Flush()
}

func (a *app) finalResults(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("final_results get: expected <job_id>")
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	manager := jobs.NewManager(client, projects.NewManager(client))

	final, err := manager.FetchFinalResult(ctx, args[0])
	if err != nil {
		return err
	}
	var pretty json.RawMessage = final.Data
	formatted, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		formatted = final.Data
	}
	fmt.Fprintln(a.out, string(formatted))
	return nil
}

func (a *app) backendsList(ctx context.Context, _ []string) error {
	client, err := a.client()
	if err != nil {
		return err
	}
	list, err := backends.NewCatalog(client).List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tSTATUS")
	for _, b := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Type, b.Status)
	}
	return w.Flush()
}

func (a *app) projectsList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("projects list", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "filter by name or description substring")
	exact := fs.Bool("exact", false, "match the name exactly")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	list, err := projects.NewManager(client).List(ctx, projects.Filter{Name: *name, Exact: *exact})
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.ID, p.Name, p.Description)
	}
	return w.Flush()
}

func (a *app) projectsDelete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("projects delete", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "delete projects matching this name or description substring")
	exact := fs.Bool("exact", false, "match the name exactly")
	all := fs.Bool("all", false, "delete every project")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sel := projects.Selector{
		IDs:   fs.Args(),
		Name:  *name,
		Exact: *exact,
		All:   *all,
	}
	if len(sel.IDs) == 0 && sel.Name == "" && !sel.All {
		return projects.ErrEmptySelection
	}

	if !*yes && !a.confirm(describeSelection(sel)) {
		fmt.Fprintln(a.out, "Aborted.")
		return nil
	}

	client, err := a.client()
	if err != nil {
		return err
	}
	report, err := projects.NewManager(client).Delete(ctx, sel)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Deleted %d project(s)\n", len(report.Deleted))
	if !report.AllDeleted() {
		return fmt.Errorf("projects delete: not found: %s", strings.Join(report.Missing, ", "))
	}
	return nil
}

func describeSelection(sel projects.Selector) string {
	switch {
	case len(sel.IDs) > 0:
		return fmt.Sprintf("Delete %d project(s) by id?", len(sel.IDs))
	case sel.Name != "":
		return fmt.Sprintf("Delete all projects matching %q?", sel.Name)
	default:
		return "Delete ALL projects?"
	}
}

func (a *app) confirm(prompt string) bool {
	fmt.Fprintf(a.out, "%s [y/N]: ", prompt)
	reader := bufio.NewReader(a.in)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
