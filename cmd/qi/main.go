package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
)

const usage = `Usage: qi <command> [arguments]

Commands:
  login [host]                            log in to Quantum Inspire
  logout [host]                           log out and forget the stored credential
  files upload <file> <backend_id>        submit a program for execution
  results get <job_id>                    fetch the result of a finished job
  final_results get <job_id>              fetch the final result of a finished job
  backends list                           list available backends
  projects list [--name N] [--exact]      list projects
  projects delete [ids...] [--name N] [--exact] [--all] [--yes]
                                          delete projects
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Args[1:]); err != nil {
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		logger.Error().Msg(err.Error())
		os.Exit(1)
	}
}

// run dispatches the subcommand; errors bubble up here so main owns
// the exit code.
func run(ctx context.Context, out io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(out, usage)
		return errors.New("no command given")
	}

	app := newApp(out)

	switch args[0] {
	case "login":
		return app.login(ctx, args[1:])
	case "logout":
		return app.logout(args[1:])
	case "files":
		return dispatchSub(ctx, app.upload, "upload", args[1:])
	case "results":
		return dispatchSub(ctx, app.results, "get", args[1:])
	case "final_results":
		return dispatchSub(ctx, app.finalResults, "get", args[1:])
	case "backends":
		return dispatchSub(ctx, app.backendsList, "list", args[1:])
	case "projects":
		if len(args) < 2 {
			return errors.New("projects: expected 'list' or 'delete'")
		}
		switch args[1] {
		case "list":
			return app.projectsList(ctx, args[2:])
		case "delete":
			return app.projectsDelete(ctx, args[2:])
		default:
			return fmt.Errorf("projects: unknown subcommand %q", args[1])
		}
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		fmt.Fprint(out, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func dispatchSub(ctx context.Context, cmd func(context.Context, []string) error, want string, args []string) error {
	if len(args) == 0 || args[0] != want {
		return fmt.Errorf("expected subcommand %q", want)
	}
	return cmd(ctx, args[1:])
}
