// Command admin runs maintenance tasks against the record store: schema
// creation, user creation and spreadsheet export.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/SamuelPedraGoncalves/gerenciador/internal/entity"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/export"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/form"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/session"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/state"
	"github.com/SamuelPedraGoncalves/gerenciador/internal/store"
	"github.com/SamuelPedraGoncalves/gerenciador/pkg/database"
	"github.com/SamuelPedraGoncalves/gerenciador/pkg/utilities"
)

const usage = `usage: admin <command> [flags]

commands:
  migrate                          create missing tables
  createuser -username NAME [-role ADMIN|USER] [-password PW]
  export -kind KIND [-out FILE]    write a collection to an xlsx file
`

// adminStore is what the commands need from the gateway.
type adminStore interface {
	state.Source
	form.Store
	EnsureSchema(ctx context.Context) error
}

type env struct {
	stdout       io.Writer
	stderr       io.Writer
	logger       *zap.SugaredLogger
	hasher       form.PasswordHasher
	readPassword func() (string, error)
	open         func(ctx context.Context) (adminStore, func(), error)
}

func main() {
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := env{
		stdout:       os.Stdout,
		stderr:       os.Stderr,
		logger:       lg.Sugar(),
		hasher:       session.BcryptHasher{Cost: 12},
		readPassword: promptPassword(os.Stdin, os.Stderr),
		open:         openGateway,
	}
	code := run(ctx, os.Args[1:], e)
	stop()
	_ = lg.Sync()
	os.Exit(code)
}

func run(ctx context.Context, args []string, e env) int {
	if len(args) == 0 {
		fmt.Fprint(e.stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "migrate":
		err = migrate(ctx, e)
	case "createuser":
		err = createUser(ctx, args[1:], e)
	case "export":
		err = exportKind(ctx, args[1:], e)
	case "help", "-h", "--help":
		fmt.Fprint(e.stdout, usage)
		return 0
	default:
		fmt.Fprintf(e.stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 2
		}
		fmt.Fprintf(e.stderr, "%s: %v\n", args[0], err)
		return 1
	}
	return 0
}

func migrate(ctx context.Context, e env) error {
	st, closeFn, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	if err := st.EnsureSchema(ctx); err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, "schema is up to date")
	return nil
}

func createUser(ctx context.Context, args []string, e env) error {
	fs := flag.NewFlagSet("createuser", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	username := fs.String("username", "", "login name")
	role := fs.String("role", string(entity.RoleUser), "ADMIN or USER")
	password := fs.String("password", "", "password; prompted when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*username) == "" {
		return errors.New("-username is required")
	}
	pw := *password
	if pw == "" {
		var err error
		if pw, err = e.readPassword(); err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	st, closeFn, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	cache := state.New(st, e.logger)
	if err := cache.Reload(ctx); err != nil {
		return err
	}
	if _, ok := cache.FindUser(*username); ok {
		return fmt.Errorf("user %q already exists", *username)
	}

	sub := form.NewSubmitter(st, cache, nil, e.hasher, e.logger)
	out, err := sub.Submit(ctx, form.Save{Fields: &form.UserFields{
		Username: *username,
		Password: pw,
		Role:     *role,
	}})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "created user %s (id %v)\n", strings.TrimSpace(*username), out.Record["id"])
	return nil
}

func exportKind(ctx context.Context, args []string, e env) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	kindName := fs.String("kind", "", "collection to export, e.g. students")
	outPath := fs.String("out", "", "output file; defaults to KIND.xlsx")
	if err := fs.Parse(args); err != nil {
		return err
	}
	kind, err := entity.ParseKind(*kindName)
	if err != nil {
		return err
	}
	if *outPath == "" {
		*outPath = string(kind) + ".xlsx"
	}

	st, closeFn, err := e.open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	cache := state.New(st, e.logger)
	if err := cache.Reload(ctx); err != nil {
		return err
	}
	body, err := export.Workbook(kind, cache.Snapshot().Items(kind))
	if err != nil {
		return err
	}
	if err := os.WriteFile(*outPath, body, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "wrote %s\n", *outPath)
	return nil
}

func openGateway(ctx context.Context) (adminStore, func(), error) {
	cfg := database.ConfigFromEnv()
	sqlDB, err := database.Connect(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	db := sqlx.NewDb(sqlDB, "postgres")
	return store.NewGateway(db, nil), func() { _ = db.Close() }, nil
}

// promptPassword reads without echo from a terminal and a plain line otherwise.
func promptPassword(in *os.File, prompt io.Writer) func() (string, error) {
	return func() (string, error) {
		fd := int(in.Fd())
		if term.IsTerminal(fd) {
			fmt.Fprint(prompt, "Password: ")
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(prompt)
			return string(b), err
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}
