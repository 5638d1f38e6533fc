package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/Skryldev/proofing-amp/config"
	"github.com/Skryldev/proofing-amp/models"
	"github.com/Skryldev/proofing-amp/proofing"
	"github.com/Skryldev/proofing-amp/repo"
	"github.com/Skryldev/proofing-amp/tracing"
)

var contextsCmd = &cobra.Command{
	Use:   "contexts",
	Short: "List the proofing contexts and where their stores live",
	Args:  cobra.NoArgs,
	RunE:  runContexts,
}

var diffCmd = &cobra.Command{
	Use:   "diff <context> <user-id>",
	Short: "Print the attribute patch for a user",
	Long: `Print the patch the attribute manager would apply to the central user
record, as relaxed MongoDB extended JSON. An empty patch prints {}.`,
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

var putCmd = &cobra.Command{
	Use:   "put <context> <user-id> <file.json>",
	Short: "Store a user document in a context's private database",
	Long: `Store a user document, given as MongoDB extended JSON, in the private
database of a proofing context. Intended for tests and local setups; the
proofing services own their databases in production.`,
	Args: cobra.ExactArgs(3),
	RunE: runPut,
}

var createTable bool

func init() {
	putCmd.Flags().BoolVar(&createTable, "create-table", false, "Create the SQL table first if it is missing")
}

func runContexts(cmd *cobra.Command, _ []string) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTEXT\tMETHOD\tLEGACY\tCUTOVER\tNAMESPACE\tSTORE")

	for _, def := range proofing.Definitions() {
		cc := cfg.Context(def.Name)

		cutover := "-"
		if def.Legacy {
			t, ok, err := cc.CutoverTime()
			if err != nil {
				return err
			}
			if !ok {
				t = def.DefaultCutover
			}
			cutover = t.Format(config.CutoverLayout)
		}

		ns := def.Namespace
		if cc.Database != "" {
			ns.Database = cc.Database
		}
		if cc.Collection != "" {
			ns.Collection = cc.Collection
		}

		store := "not configured"
		switch {
		case cc.Disabled:
			store = "disabled"
		case cc.URI != "":
			backend, err := repo.BackendFor(cc.URI)
			if err != nil {
				backend = "unsupported"
			}
			store = backend
		}

		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\t%s\n", def.Name, def.Method, def.Legacy, cutover, ns, store)
	}
	return w.Flush()
}

func runDiff(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, userID := args[0], args[1]

	m := newMetrics()
	tracer := tracing.New(nil)
	reg, conn, err := openContext(ctx, name, m, tracer)
	if err != nil {
		return err
	}
	defer closeConnector(ctx, conn)

	plugin := proofing.NewPlugin(reg, proofing.NewFetcher(
		proofing.WithLogger(logger),
		proofing.WithMetrics(m),
		proofing.WithTracer(tracer),
	))
	patch, err := plugin.AttributeFetcher(ctx, name, userID)
	switch {
	case repo.IsNotFound(err):
		return fmt.Errorf("user %s not found in %s: %w", userID, name, err)
	case repo.IsUnknownField(err):
		return fmt.Errorf("user %s in %s has undeclared attributes: %w", userID, name, err)
	case err != nil:
		return err
	}

	out, err := patch.MarshalJSON()
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name, userID, path := args[0], args[1], args[2]

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var doc bson.M
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	record := models.NewRecord(doc)

	reg, conn, err := openContext(ctx, name, nil, tracing.New(nil))
	if err != nil {
		return err
	}
	defer closeConnector(ctx, conn)

	pc, err := reg.Resolve(name)
	if err != nil {
		return err
	}
	if err := pc.Schema().Check(record); err != nil {
		return err
	}

	if sqlStore, ok := pc.Store().(*repo.SQLUserRepo); ok && createTable {
		if err := sqlStore.EnsureTable(ctx); err != nil {
			return err
		}
	}
	writer, ok := pc.Store().(repo.UserWriter)
	if !ok {
		return fmt.Errorf("store of %s is read-only", name)
	}
	if err := writer.Save(ctx, userID, record); err != nil {
		return err
	}
	logger.InfoContext(ctx, "amp: user stored",
		slog.String("context", name),
		slog.String("user_id", userID),
	)
	return nil
}
