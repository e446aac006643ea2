package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/CatchTheTornado/agentvec/internal/config"
	"github.com/CatchTheTornado/agentvec/pkg/agentvec"
	"github.com/CatchTheTornado/agentvec/pkg/core"
)

var (
	configPath string
	dataDir    string
	partition  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "agentvec",
	Short: "CLI for the agentvec per-tenant vector store",
	Long:  `Manage named vector stores and their records: create stores, add records, run similarity searches and keep schemas up to date.`,
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if partition != "" {
		cfg.Partition = partition
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

func openDB() (*agentvec.DB, *zap.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	payloadCodec, err := cfg.BuildCodec()
	if err != nil {
		return nil, nil, err
	}
	db, err := agentvec.Open(agentvec.Config{
		DataDir:   cfg.DataDir,
		Partition: cfg.Partition,
	}, agentvec.WithCodec(payloadCodec), agentvec.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return db, logger, nil
}

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage stores",
}

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stores with their stats",
	RunE: func(cmd *cobra.Command, args []string) error {
		query, _ := cmd.Flags().GetString("query")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		res, err := db.QueryFiles(context.Background(), agentvec.QueryFilesOptions{
			Query: query, Limit: limit, Offset: offset,
		})
		if err != nil {
			return err
		}
		for _, f := range res.Files {
			fmt.Printf("%-30s items=%-6d dim=%-5d updated=%s\n",
				f.Name, f.ItemCount, f.Dimension, f.UpdatedAt.Format(time.RFC3339))
		}
		fmt.Printf("total=%d hasMore=%v\n", res.Total, res.HasMore)
		return nil
	},
}

var storesCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create an empty store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		if err := db.CreateStore(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("created store %s\n", args[0])
		return nil
	},
}

var storesDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a store and all its records",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		if err := db.DeleteFile(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted store %s\n", args[0])
		return nil
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Manage records inside a store",
}

func parseVector(s string) ([]float32, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vector = append(vector, float32(val))
	}
	return vector, nil
}

var recordsAddCmd = &cobra.Command{
	Use:   "add <store>",
	Short: "Add or update a record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetString("id")
		content, _ := cmd.Flags().GetString("content")
		vectorStr, _ := cmd.Flags().GetString("vector")
		metadataStr, _ := cmd.Flags().GetString("metadata")
		sessionID, _ := cmd.Flags().GetString("session")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		rec := &core.Record{
			ID:        id,
			Content:   content,
			Vector:    vector,
			SessionID: sessionID,
		}
		if metadataStr != "" {
			var meta core.Value
			if err := json.Unmarshal([]byte(metadataStr), &meta); err != nil {
				return fmt.Errorf("invalid metadata JSON: %w", err)
			}
			rec.Metadata = meta
		}
		if ttl > 0 {
			expires := time.Now().Add(ttl)
			rec.ExpiresAt = &expires
		}

		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		if err := db.SaveRecord(context.Background(), args[0], rec); err != nil {
			return err
		}
		fmt.Printf("saved record %s\n", rec.ID)
		return nil
	},
}

var recordsListCmd = &cobra.Command{
	Use:   "list <store>",
	Short: "List records, newest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		filter, _ := cmd.Flags().GetString("filter")

		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		res, err := db.ListRecords(context.Background(), args[0], agentvec.ListRecordsOptions{
			Limit: limit, Offset: offset, TextFilter: filter,
		})
		if err != nil {
			return err
		}
		for _, row := range res.Rows {
			fmt.Printf("%-36s %s\n", row.ID, row.Content)
		}
		fmt.Printf("total=%d hasMore=%v\n", res.Total, res.HasMore)
		return nil
	},
}

var recordsSearchCmd = &cobra.Command{
	Use:   "search <store>",
	Short: "Similarity search by raw vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		topK, _ := cmd.Flags().GetInt("top-k")
		sessionID, _ := cmd.Flags().GetString("session")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		if len(vector) == 0 {
			return fmt.Errorf("vector is required")
		}

		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		store, err := db.GetStore(context.Background(), args[0])
		if err != nil {
			return err
		}
		hits, err := store.SimilaritySearch(context.Background(), vector, core.SearchOptions{
			TopK: topK, SessionID: sessionID,
		})
		if err != nil {
			return err
		}
		for _, hit := range hits {
			fmt.Printf("%.4f %-36s %s\n", hit.Similarity, hit.ID, hit.Content)
		}
		return nil
	},
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete <store> <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		if err := db.DeleteRecord(context.Background(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("deleted record %s\n", args[1])
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <store>",
	Short: "Apply pending schema migrations to a store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		if err := db.MigrateStore(context.Background(), args[0]); err != nil {
			return err
		}
		fmt.Printf("migrated store %s\n", args[0])
		return nil
	},
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <store>",
	Short: "Roll a store's schema back to a target version",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetInt64("to")

		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		if err := db.RollbackStore(context.Background(), args[0], target); err != nil {
			return err
		}
		fmt.Printf("rolled back store %s to version %d\n", args[0], target)
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep <store>",
	Short: "Purge expired records from a store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, logger, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		defer logger.Sync()

		purged, err := db.Sweep(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("purged %d expired records from %s\n", purged, args[0])
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override data directory")
	rootCmd.PersistentFlags().StringVar(&partition, "partition", "", "override partition")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	storesListCmd.Flags().String("query", "", "substring filter on store names")
	storesListCmd.Flags().Int("limit", 0, "page size (0 = all)")
	storesListCmd.Flags().Int("offset", 0, "page offset")
	storesCmd.AddCommand(storesListCmd, storesCreateCmd, storesDeleteCmd)

	recordsAddCmd.Flags().String("id", "", "record id (generated when empty)")
	recordsAddCmd.Flags().String("content", "", "record content")
	recordsAddCmd.Flags().String("vector", "", "comma-separated vector components")
	recordsAddCmd.Flags().String("metadata", "", "metadata as JSON")
	recordsAddCmd.Flags().String("session", "", "session id")
	recordsAddCmd.Flags().Duration("ttl", 0, "time to live, e.g. 24h")
	recordsListCmd.Flags().Int("limit", 0, "page size")
	recordsListCmd.Flags().Int("offset", 0, "page offset")
	recordsListCmd.Flags().String("filter", "", "substring filter on content and metadata")
	recordsSearchCmd.Flags().String("vector", "", "comma-separated query vector")
	recordsSearchCmd.Flags().Int("top-k", 10, "number of results")
	recordsSearchCmd.Flags().String("session", "", "restrict to one session")
	recordsCmd.AddCommand(recordsAddCmd, recordsListCmd, recordsSearchCmd, recordsDeleteCmd)

	rollbackCmd.Flags().Int64("to", 0, "target schema version")

	rootCmd.AddCommand(storesCmd, recordsCmd, migrateCmd, rollbackCmd, sweepCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
