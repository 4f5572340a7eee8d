package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/grana-app/grana/internal/backup"
	"github.com/grana-app/grana/internal/classify"
	"github.com/grana-app/grana/internal/config"
	"github.com/grana-app/grana/internal/logger"
	"github.com/grana-app/grana/internal/remote"
	"github.com/grana-app/grana/internal/remote/bigquery"
	"github.com/grana-app/grana/internal/remote/postgres"
	"github.com/grana-app/grana/internal/snapshot"
	"github.com/grana-app/grana/internal/store"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "sync":
		runSync(log)
	case "backup":
		runBackup(log)
	case "restore":
		runRestore(log)
	case "classify":
		runClassify(log)
	case "purge":
		runPurge(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Grana")
	fmt.Println("\nUsage:")
	fmt.Println("  grana <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  sync      Hydrate from the remote store, materialize due recurrences and persist")
	fmt.Println("  backup    Export the account snapshot to the backup bucket")
	fmt.Println("  restore   Import a snapshot export and persist it")
	fmt.Println("  classify  Suggest a category for a transaction description")
	fmt.Println("  purge     Delete every remote and local row for the account")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'grana <command> -h' for more information on a command.")
}

func defaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".grana", "grana.toml")
}

// openStore wires the snapshot store and the configured gateway into a state
// store. The returned cleanup closes both.
func openStore(ctx context.Context, cfg config.Config, log zerolog.Logger) (*store.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(cfg.SnapshotPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating snapshot dir: %w", err)
	}
	local, err := snapshot.Open(cfg.SnapshotPath, log)
	if err != nil {
		return nil, nil, err
	}

	var gw remote.Gateway
	closeGW := func() {}
	switch cfg.Backend {
	case config.BackendBigQuery:
		bq, err := bigquery.New(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, log)
		if err != nil {
			local.Close()
			return nil, nil, err
		}
		gw, closeGW = bq, func() { bq.Close() }
	case config.BackendPostgres:
		pg, err := postgres.Connect(ctx, cfg.Postgres.URL, log)
		if err != nil {
			local.Close()
			return nil, nil, err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			local.Close()
			return nil, nil, err
		}
		gw, closeGW = pg, func() { pg.Close() }
	case config.BackendNone:
	}

	st := store.New(local, gw, log)
	cleanup := func() {
		st.Close()
		closeGW()
		local.Close()
	}
	return st, cleanup, nil
}

func mustResolve(ctx context.Context, st *store.Store, userID, email string, log zerolog.Logger) string {
	accountID, err := st.ResolveAccount(ctx, userID, email)
	if err != nil {
		log.Fatal().Err(err).Msg("Account resolution failed")
	}
	return accountID
}

func runSync(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to the config file")
	userID := fs.String("user", "", "User id")
	email := fs.String("email", "", "User email, used for invite lookup")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading config failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Opening store failed")
	}
	defer cleanup()

	accountID := mustResolve(ctx, st, *userID, *email, log)
	log.Info().Str("accountId", accountID).Msg("Starting sync")

	if err := st.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}

	fmt.Printf("Synced account %s: %d transactions, %d recurring, %d bills\n",
		accountID, len(st.Transactions()), len(st.Recurring()), len(st.Bills()))
}

func runBackup(log zerolog.Logger) {
	fs := flag.NewFlagSet("backup", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to the config file")
	userID := fs.String("user", "", "User id")
	email := fs.String("email", "", "User email, used for invite lookup")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading config failed")
	}
	if cfg.Backup.Bucket == "" {
		log.Fatal().Msg("Error: backup.bucket is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Opening store failed")
	}
	defer cleanup()

	accountID := mustResolve(ctx, st, *userID, *email, log)
	if err := st.Hydrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("Hydration failed")
	}

	snap := remote.Snapshot{
		Transactions: st.Transactions(),
		Recurring:    st.Recurring(),
		Bills:        st.Bills(),
		Payslips:     st.Payslips(),
		Budgets:      st.Budgets(),
		Goals:        st.Goals(),
	}
	uri, err := backup.Export(ctx, cfg.Backup.Bucket, accountID, &snap)
	if err != nil {
		log.Fatal().Err(err).Msg("Backup failed")
	}

	fmt.Printf("Backup written to %s\n", uri)
}

func runRestore(log zerolog.Logger) {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to the config file")
	userID := fs.String("user", "", "User id")
	email := fs.String("email", "", "User email, used for invite lookup")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of the backup to restore")
	fs.Parse(os.Args[2:])

	if *userID == "" || *gcsURI == "" {
		log.Fatal().Msg("Usage: grana restore -user ID -gcs-uri gs://bucket/path.json")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading config failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Opening store failed")
	}
	defer cleanup()

	mustResolve(ctx, st, *userID, *email, log)

	snap, err := backup.Fetch(ctx, *gcsURI)
	if err != nil {
		log.Fatal().Err(err).Msg("Fetching backup failed")
	}

	st.SetTransactions(store.Replace(snap.Transactions))
	st.SetRecurring(store.Replace(snap.Recurring))
	st.SetBills(store.Replace(snap.Bills))
	st.SetPayslips(store.Replace(snap.Payslips))
	st.SetBudgets(store.Replace(snap.Budgets))
	st.SetGoals(store.Replace(snap.Goals))

	fmt.Printf("Restored %d transactions from %s\n", len(snap.Transactions), *gcsURI)
}

func runClassify(log zerolog.Logger) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to the config file")
	description := fs.String("description", "", "Transaction description to classify")
	fs.Parse(os.Args[2:])

	if *description == "" {
		log.Fatal().Msg("Error: --description is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading config failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	// Baseline taxonomy; a synced client would derive this from its own
	// categories.
	taxonomy := map[string][]string{
		"Moradia":    {"Aluguel", "Condominio", "Energia", "Agua", "Internet"},
		"Mercado":    {"Supermercado", "Feira", "Padaria"},
		"Transporte": {"Combustivel", "App", "Transporte Publico"},
		"Lazer":      {"Restaurante", "Cinema", "Viagem"},
		"Saude":      {"Farmacia", "Consulta", "Plano"},
		"Outros":     {},
	}

	suggestion, err := classify.New(cfg.Classifier.Model, log).Suggest(ctx, *description, taxonomy)
	if err != nil {
		log.Fatal().Err(err).Msg("Classification failed")
	}

	fmt.Printf("%s / %s\n", suggestion.Category, suggestion.Subcategory)
}

func runPurge(log zerolog.Logger) {
	fs := flag.NewFlagSet("purge", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath(), "Path to the config file")
	userID := fs.String("user", "", "User id")
	email := fs.String("email", "", "User email, used for invite lookup")
	yes := fs.Bool("yes", false, "Confirm deletion of all account data")
	fs.Parse(os.Args[2:])

	if *userID == "" {
		log.Fatal().Msg("Error: --user is required")
	}
	if !*yes {
		log.Fatal().Msg("Refusing to purge without -yes")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Loading config failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	st, cleanup, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Opening store failed")
	}
	defer cleanup()

	accountID := mustResolve(ctx, st, *userID, *email, log)
	if err := st.PurgeAccount(ctx); err != nil {
		log.Fatal().Err(err).Msg("Purge failed")
	}

	fmt.Printf("Purged all data for account %s\n", accountID)
}
