package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/postsiva/internal/backend"
	"github.com/desertthunder/postsiva/internal/guard"
	"github.com/desertthunder/postsiva/internal/orchestrator"
	"github.com/desertthunder/postsiva/internal/shared"
	"github.com/desertthunder/postsiva/internal/tokenstore"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The token store, backend client and database are opened lazily so that commands like setup work without them.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	opener     shared.Opener

	mu     sync.Mutex
	db     *sql.DB
	store  tokenstore.Store
	client *backend.Client
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	// Opener shows consent and login pages. Defaults to the system browser, printing the URL when that fails.
	Opener shared.Opener
	DB     *sql.DB
	Store  tokenstore.Store
	Client *backend.Client
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Opener == nil {
		opts.Opener = shared.FallbackOpener(opts.Output)
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		opener:     opts.Opener,
		db:         opts.DB,
		store:      opts.Store,
		client:     opts.Client,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, linkedinCommand, postCommand, mediaCommand, scheduleCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// SetLogger swaps the logger used by later commands.
func (r *Runner) SetLogger(l *log.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = l
}

// Close releases the database when one was opened.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// database opens and migrates the configured database on first use.
func (r *Runner) database() (*sql.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.db != nil {
		return r.db, nil
	}
	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.db = db
	return db, nil
}

func (r *Runner) tokenStore() (tokenstore.Store, error) {
	r.mu.Lock()
	store := r.store
	r.mu.Unlock()
	if store != nil {
		return store, nil
	}

	var db *sql.DB
	if r.config.Auth.Store == "sqlite" {
		var err error
		if db, err = r.database(); err != nil {
			return nil, err
		}
	}
	store, err := tokenstore.Open(r.config.Auth, db)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.store = store
	return store, nil
}

func (r *Runner) backendClient() (*backend.Client, error) {
	store, err := r.tokenStore()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		r.client = backend.NewClient(r.config.Backend.BaseURL, store,
			backend.WithLogger(r.logger),
			backend.WithTimeout(r.config.Backend.Timeout.Duration),
		)
	}
	return r.client, nil
}

// orchestrator builds a fresh orchestrator whose router starts on path.
func (r *Runner) orchestrator(path string) (*orchestrator.Orchestrator, error) {
	client, err := r.backendClient()
	if err != nil {
		return nil, err
	}
	store, err := r.tokenStore()
	if err != nil {
		return nil, err
	}
	return orchestrator.New(orchestrator.Config{
		Client:        client,
		Store:         store,
		Start:         path,
		FallbackDelay: r.config.Guard.FallbackDelay.Duration,
		Logger:        r.logger,
	}), nil
}

// enter boots an orchestrator on view and reports where the guard left it. Landing on the login view means there
// is no valid session; landing on the connect view from a view that needs LinkedIn means the account is not linked.
// The caller owns the returned orchestrator and must Close it.
func (r *Runner) enter(ctx context.Context, view guard.View) (*orchestrator.Orchestrator, error) {
	orch, err := r.orchestrator(view.Path)
	if err != nil {
		return nil, err
	}

	res, err := orch.Boot(ctx, nil)
	if err != nil {
		orch.Close()
		return nil, err
	}

	landed := orch.Router.Current()
	r.logger.Debug("guarded", "view", view.Name, "action", res.Decision.Action, "landed", landed, "reason", res.Decision.Reason)

	switch {
	case landed == guard.LoginPath && view.RequiresAuth:
		orch.Close()
		return nil, shared.ErrNotAuthenticated
	case landed == guard.ConnectPath && view.NeedsIntegration && view.Path != guard.ConnectPath:
		orch.Close()
		return nil, fmt.Errorf("%w: run 'postsiva linkedin connect' first", shared.ErrNotConnected)
	}
	return orch, nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
