// Package cli holds the flags and commands of the tcm-e2e binary. The e2e
// suite parses its own arguments with the same flag set.
package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/playwright-community/playwright-go"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/testme/tcm-e2e/internal/config"
	"github.com/testme/tcm-e2e/internal/database"
	"github.com/testme/tcm-e2e/internal/repository"
	"github.com/testme/tcm-e2e/internal/services"
	"github.com/testme/tcm-e2e/internal/session"
)

// NewApp builds the command-line application
func NewApp(version string, getenv func(string) string) *cli.App {
	return &cli.App{
		Name:    "tcm-e2e",
		Usage:   "End-to-end tooling for the test case management application",
		Version: version,
		Flags:   Flags(),
		Commands: []*cli.Command{
			SettingsCommand(getenv),
			TestCasesCommand(getenv),
			AuthCommand(getenv),
			InstallCommand(getenv),
		},
	}
}

// runtime is what every command action starts from
type runtime struct {
	cfg    config.Settings
	logger *zap.Logger
	out    io.Writer
}

func setup(c *cli.Context, getenv func(string) string) (*runtime, error) {
	cfg, err := LoadSettings(c, getenv)
	if err != nil {
		return nil, err
	}
	logger, err := NewLogger(c)
	if err != nil {
		return nil, err
	}
	return &runtime{cfg: cfg, logger: logger, out: c.App.Writer}, nil
}

// action wraps a command body with settings loading and logger flushing
func action(getenv func(string) string, run func(c *cli.Context, rt *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := setup(c, getenv)
		if err != nil {
			return err
		}
		defer rt.logger.Sync()
		return run(c, rt)
	}
}

// SettingsCommand prints the resolved settings with secrets masked
func SettingsCommand(getenv func(string) string) *cli.Command {
	return &cli.Command{
		Name:  "settings",
		Usage: "Print the resolved settings",
		Action: action(getenv, func(c *cli.Context, rt *runtime) error {
			s := rt.cfg.Redacted()
			tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
			rows := [][2]any{
				{"BASE_URL", s.BaseURL},
				{"ADMIN_USERNAME", s.AdminUsername},
				{"ADMIN_PASSWORD", s.AdminPassword},
				{"SECONDARY_USERNAME", s.SecondaryUsername},
				{"SECONDARY_PASSWORD", s.SecondaryPassword},
				{"IS_MOBILE", s.IsMobile},
				{"LATITUDE", s.Latitude},
				{"LONGITUDE", s.Longitude},
				{"DB_PATH", s.DBPath},
				{"TARGET_BROWSER", s.Browser},
				{"TARGET_HEADLESS", s.Headless},
				{"STORAGE_DIR", s.StorageDir},
				{"REPORT_DIR", s.ReportDir},
				{"UI_TIMEOUT", s.Timeout},
			}
			for _, row := range rows {
				fmt.Fprintf(tw, "%s\t%v\n", row[0], row[1])
			}
			return tw.Flush()
		}),
	}
}

func openRepository(cfg config.Settings) (*repository.TestCaseRepository, func() error, error) {
	if err := cfg.RequireDBPath(); err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewTestCaseRepository(db, database.DialectFor(cfg.DBPath)), db.Close, nil
}

func loggedInClient(c *cli.Context, rt *runtime) (*services.HTTPTCMClient, error) {
	if err := rt.cfg.RequireAdmin(); err != nil {
		return nil, err
	}
	client, err := services.NewTCMClient(rt.cfg, rt.logger)
	if err != nil {
		return nil, err
	}
	if err := client.Login(c.Context, rt.cfg.AdminUsername, rt.cfg.AdminPassword); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// TestCasesCommand groups the backend test case operations
func TestCasesCommand(getenv func(string) string) *cli.Command {
	return &cli.Command{
		Name:  "testcases",
		Usage: "Inspect and manage test cases through the backend",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List test cases stored in the database",
				Action: action(getenv, func(c *cli.Context, rt *runtime) error {
					repo, closeDB, err := openRepository(rt.cfg)
					if err != nil {
						return err
					}
					defer closeDB()

					cases, err := repo.ListTestCases(c.Context)
					if err != nil {
						return err
					}

					tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "ID\tNAME\tDESCRIPTION")
					for _, tc := range cases {
						fmt.Fprintf(tw, "%d\t%s\t%s\n", tc.ID, tc.Name, tc.Description)
					}
					return tw.Flush()
				}),
			},
			{
				Name:  "create",
				Usage: "Create a test case through the application",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "test case name", Required: true},
					&cli.StringFlag{Name: "description", Usage: "test case description"},
					&cli.BoolFlag{Name: "verify", Usage: "confirm the new row in the database"},
				},
				Action: action(getenv, func(c *cli.Context, rt *runtime) error {
					client, err := loggedInClient(c, rt)
					if err != nil {
						return err
					}
					defer client.Close()

					name, description := c.String("name"), c.String("description")
					if !c.Bool("verify") {
						if err := client.CreateTestCase(c.Context, name, description); err != nil {
							return err
						}
						fmt.Fprintf(rt.out, "created test case %q\n", name)
						return nil
					}

					repo, closeDB, err := openRepository(rt.cfg)
					if err != nil {
						return err
					}
					defer closeDB()

					created, err := services.NewTestCaseService(client, repo, rt.logger).CreateVerified(c.Context, name, description)
					if err != nil {
						return err
					}
					fmt.Fprintf(rt.out, "created test case %q with id %d\n", created.Name, created.ID)
					return nil
				}),
			},
			{
				Name:  "delete",
				Usage: "Delete test cases by name directly in the database",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Usage: "test case name", Required: true},
				},
				Action: action(getenv, func(c *cli.Context, rt *runtime) error {
					repo, closeDB, err := openRepository(rt.cfg)
					if err != nil {
						return err
					}
					defer closeDB()

					removed, err := repo.DeleteTestCase(c.Context, c.String("name"))
					if err != nil {
						return err
					}
					fmt.Fprintf(rt.out, "deleted %d test case(s) named %q\n", removed, c.String("name"))
					return nil
				}),
			},
		},
	}
}

// AuthCommand logs in through the browser and writes the storage-state files
func AuthCommand(getenv func(string) string) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Log in through the browser and capture the storage state",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "keep", Usage: "leave the storage-state files on disk"},
			&cli.BoolFlag{Name: "all", Usage: "capture both the desktop and the mobile profile"},
		},
		Action: action(getenv, func(c *cli.Context, rt *runtime) error {
			manager, err := session.NewManager(rt.cfg, rt.logger)
			if err != nil {
				return err
			}
			stop := WatchInterrupt(manager.Close, nil, nil, rt.logger)
			defer stop()

			profiles := []session.Profile{session.AuthProfileFor(rt.cfg.IsMobile)}
			if c.Bool("all") {
				profiles = []session.Profile{session.ProfileDesktop, session.ProfileMobile}
			}

			paths := make([]string, len(profiles))
			skipped := make([]error, len(profiles))
			var g errgroup.Group
			for i, p := range profiles {
				g.Go(func() error {
					path, err := manager.Authenticate(p)
					if errors.Is(err, session.ErrUnsupportedDevice) {
						rt.logger.Warn("Skipping profile", zap.String("profile", string(p)), zap.Error(err))
						skipped[i] = err
						return nil
					}
					paths[i] = path
					return err
				})
			}

			authErr := g.Wait()
			if authErr == nil && c.Bool("keep") {
				manager.KeepStateFiles()
			}
			if err := errors.Join(authErr, manager.Close()); err != nil {
				return err
			}

			for i, p := range profiles {
				switch {
				case skipped[i] != nil:
					fmt.Fprintf(rt.out, "%s: skipped, %v\n", p, skipped[i])
				case paths[i] == "":
				case c.Bool("keep"):
					fmt.Fprintf(rt.out, "%s: storage state written to %s\n", p, paths[i])
				default:
					fmt.Fprintf(rt.out, "%s: login succeeded\n", p)
				}
			}
			return nil
		}),
	}
}

// InstallCommand downloads the playwright driver and the configured browser
func InstallCommand(getenv func(string) string) *cli.Command {
	return &cli.Command{
		Name:  "install",
		Usage: "Install the playwright driver and browser",
		Action: action(getenv, func(c *cli.Context, rt *runtime) error {
			rt.logger.Info("Installing browser", zap.String("browser", rt.cfg.Browser))
			if err := playwright.Install(&playwright.RunOptions{
				Browsers: []string{rt.cfg.Browser},
				Verbose:  true,
			}); err != nil {
				return fmt.Errorf("failed to install playwright: %w", err)
			}
			return nil
		}),
	}
}
