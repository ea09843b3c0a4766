package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sqliteadapter "github.com/Mukul-raii/Miss-Minutes/internal/adapters/db/sqlite"
	httpadapter "github.com/Mukul-raii/Miss-Minutes/internal/adapters/http"
	rpcadapter "github.com/Mukul-raii/Miss-Minutes/internal/adapters/rpcjson"
	"github.com/Mukul-raii/Miss-Minutes/internal/application"
	"github.com/Mukul-raii/Miss-Minutes/internal/domain"
	"github.com/urfave/cli/v3"
)

func main() {
	args := os.Args
	if len(args) == 1 {
		args = append(args, "--help")
	}

	root := &cli.Command{
		Name:  "miss-minutes",
		Usage: "Developer activity tracking server and CLI",
		Commands: []*cli.Command{
			serverCommand(),
			authCommand(),
			syncCommand(),
			statsCommand(),
			projectsCommand(),
			auditCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return runServer(ctx, ":8080", "/tmp/miss-minutes.sock", "miss-minutes.db", "admin@miss-minutes.local", "admin")
		},
	}

	if err := root.Run(context.Background(), args); err != nil {
		log.Fatal(err)
	}
}

func serverCommand() *cli.Command {
	return &cli.Command{
		Name:  "server",
		Usage: "Run HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "rpc-socket", Value: "/tmp/miss-minutes.sock", Usage: "JSON-RPC unix socket path"},
			&cli.StringFlag{Name: "db-path", Value: "miss-minutes.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "bootstrap-admin-email", Value: "admin@miss-minutes.local", Usage: "initial admin email"},
			&cli.StringFlag{Name: "bootstrap-admin-password", Value: "admin", Usage: "initial admin password when users are empty"},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return runServer(ctx, c.String("addr"), c.String("rpc-socket"), c.String("db-path"), c.String("bootstrap-admin-email"), c.String("bootstrap-admin-password"))
		},
	}
}

func runServer(ctx context.Context, addr, rpcSocket, dbPath, bootstrapEmail, bootstrapPassword string) error {
	db, err := sqliteadapter.Open(dbPath)
	if err != nil {
		return err
	}
	if err := sqliteadapter.RunMigrations(ctx, db); err != nil {
		return err
	}

	repo := sqliteadapter.NewTrackerRepository(db)
	service := application.NewTrackerService(repo)
	if err := service.BootstrapAdmin(ctx, bootstrapEmail, bootstrapPassword); err != nil {
		return err
	}

	router := httpadapter.NewRouter(service)
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 5 * time.Second}
	rpcSrv, err := rpcadapter.Start(rpcSocket, service)
	if err != nil {
		return err
	}

	defer func() {
		_ = rpcSrv.Close()
	}()
	log.Printf("json-rpc listening on unix://%s", rpcSocket)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("server listening on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received signal %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authentication commands",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Login and store CLI token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "transport", Value: "uds"},
					&cli.StringFlag{Name: "server", Value: "http://127.0.0.1:8080"},
					&cli.StringFlag{Name: "socket", Value: "/tmp/miss-minutes.sock"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true},
					&cli.StringFlag{Name: "token-name", Value: "cli"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg := cliConfig{Transport: c.String("transport"), Server: c.String("server"), Socket: c.String("socket")}
					var out struct {
						Token string `json:"token"`
						Email string `json:"email"`
					}
					err := doLogin(ctx, cfg, c.String("email"), c.String("password"), c.String("token-name"), &out)
					if err != nil {
						return err
					}
					cfg.Token = out.Token
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Printf("logged in as %s\n", out.Email)
					return nil
				},
			},
			{
				Name:  "whoami",
				Usage: "Show current authenticated user",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out struct {
						ID    uint   `json:"id"`
						Email string `json:"email"`
					}
					if err := doWhoAmI(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printKV([][2]string{{"id", uintToString(out.ID)}, {"email", out.Email}})
					return nil
				},
			},
			{
				Name:  "logout",
				Usage: "Clear local CLI auth token",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					_ = doLogout(ctx, cfg)
					cfg.Token = ""
					if err := saveConfig(cfg); err != nil {
						return err
					}
					fmt.Println("logged out")
					return nil
				},
			},
		},
	}
}

func syncFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "file", Required: true, Usage: "JSON array payload, or - for stdin"},
		&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Push tracked data to the server",
		Commands: []*cli.Command{
			{
				Name:  "activities",
				Usage: "Sync raw activity events",
				Flags: syncFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					return runSync(ctx, c, "sync.activities", "/api/sync/activities", func(raw json.RawMessage) (any, error) {
						var items []domain.ActivityInput
						return items, json.Unmarshal(raw, &items)
					})
				},
			},
			{
				Name:  "file-activities",
				Usage: "Sync pre-aggregated per-file activity",
				Flags: syncFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					return runSync(ctx, c, "sync.file_activities", "/api/sync/file-activities", func(raw json.RawMessage) (any, error) {
						var items []domain.FileActivityInput
						return items, json.Unmarshal(raw, &items)
					})
				},
			},
			{
				Name:  "commits",
				Usage: "Sync git commit metadata",
				Flags: syncFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					return runSync(ctx, c, "sync.commits", "/api/sync/commits", func(raw json.RawMessage) (any, error) {
						var items []domain.CommitInput
						return items, json.Unmarshal(raw, &items)
					})
				},
			},
			{
				Name:  "daily-stats",
				Usage: "Sync per-day aggregated stats",
				Flags: syncFlags(),
				Action: func(ctx context.Context, c *cli.Command) error {
					return runSync(ctx, c, "sync.daily_stats", "/api/sync/daily-stats", func(raw json.RawMessage) (any, error) {
						var items []domain.DailyStatsInput
						return items, json.Unmarshal(raw, &items)
					})
				},
			},
		},
	}
}

func runSync(ctx context.Context, c *cli.Command, rpcMethod, httpPath string, decode func(json.RawMessage) (any, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	raw, err := readPayload(c.String("file"))
	if err != nil {
		return err
	}
	items, err := decode(raw)
	if err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}

	var out domain.SyncResponse
	if err := doSync(ctx, cfg, rpcMethod, httpPath, items, &out); err != nil {
		return err
	}
	if c.Bool("json") {
		return printJSON(out)
	}
	fmt.Println(out.Message)
	return nil
}

func readPayload(path string) (json.RawMessage, error) {
	if path == "-" {
		data, err := readAllStdin()
		if err != nil {
			return nil, err
		}
		return data, nil
	}
	return os.ReadFile(path)
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Aggregated statistics",
		Commands: []*cli.Command{
			{
				Name:  "dashboard",
				Usage: "Show dashboard totals, languages and daily activity",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.DashboardStats
					if err := doDashboardStats(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printDashboardStats(out)
					return nil
				},
			},
		},
	}
}

func projectsCommand() *cli.Command {
	return &cli.Command{
		Name:  "projects",
		Usage: "Project commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List tracked projects",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.Project
					if err := doProjectsList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printProjects(out)
					return nil
				},
			},
			{
				Name:  "details",
				Usage: "Show per-project breakdown",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.BoolFlag{Name: "json", Usage: "output raw JSON"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out domain.ProjectDetails
					if err := doProjectDetails(ctx, cfg, uint(c.Uint("id")), &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printProjectDetails(out)
					return nil
				},
			},
		},
	}
}

func auditCommand() *cli.Command {
	return &cli.Command{
		Name:  "audit",
		Usage: "Audit log commands",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List audit logs",
				Flags: []cli.Flag{&cli.BoolFlag{Name: "json", Usage: "output raw JSON"}},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}
					var out []domain.AuditRecord
					if err := doAuditList(ctx, cfg, &out); err != nil {
						return err
					}
					if c.Bool("json") {
						return printJSON(out)
					}
					printAuditRecords(out)
					return nil
				},
			},
		},
	}
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
