package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/feamster/pedalboard-effects/internal/config"
	"github.com/feamster/pedalboard-effects/internal/progress"
	"github.com/feamster/pedalboard-effects/internal/server"
	"github.com/feamster/pedalboard-effects/internal/store"
)

var (
	version = "0.1.0"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pedalboard",
	Short: "Guitar effects chain and preset manager",
	Long: `Pedalboard manages ordered chains of guitar effects (boost,
distortion, delay, reverb) and persists chain configurations as named
presets. The serve command exposes the full chain/preset API over HTTP
for a UI front end; the presets commands work with the preset library
directly.`,
	Version: version,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the JSON API consumed by UI front ends.

Example:
  pedalboard serve --port 8080`,
	RunE: runServe,
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Manage the preset library",
	Long: `List, inspect, export, import, and delete saved presets.

Subcommands:
  list      List presets with optional tag/search filters
  show      Show one preset's full record
  export    Export presets to a bundle file
  import    Import presets from a bundle file
  delete    Delete a preset`,
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Long: `List preset summaries sorted by name.

Examples:
  pedalboard presets list
  pedalboard presets list --tag rock --tag blues --search lead`,
	RunE: runPresetsList,
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <preset-id>",
	Short: "Show a preset's full record",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetsShow,
}

var presetsExportCmd = &cobra.Command{
	Use:   "export <preset-id>...",
	Short: "Export presets to a bundle file",
	Long: `Export the full records of the given presets as one JSON bundle.

Example:
  pedalboard presets export 4f5b... 9a1c... -o bundle.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPresetsExport,
}

var presetsImportCmd = &cobra.Command{
	Use:   "import <bundle-file>",
	Short: "Import presets from a bundle file",
	Long: `Import every preset record in a bundle. Name collisions are
skipped unless --overwrite is given.

Example:
  pedalboard presets import bundle.json --overwrite`,
	Args: cobra.ExactArgs(1),
	RunE: runPresetsImport,
}

var presetsDeleteCmd = &cobra.Command{
	Use:   "delete <preset-id>",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE:  runPresetsDelete,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect application configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the resolved configuration",
	RunE:  runConfigShow,
}

var (
	flagPort       int
	flagConfigDir  string
	flagPresetsDir string
	flagTags       []string
	flagSearch     string
	flagOutput     string
	flagOverwrite  bool
	flagVerbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", config.DefaultDir(), "configuration directory")
	rootCmd.PersistentFlags().StringVar(&flagPresetsDir, "presets-dir", "", "presets directory (default <config-dir>/presets)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose output")

	serveCmd.Flags().IntVarP(&flagPort, "port", "p", 8080, "port to listen on")

	presetsListCmd.Flags().StringSliceVar(&flagTags, "tag", nil, "filter by tag (repeatable, any match)")
	presetsListCmd.Flags().StringVar(&flagSearch, "search", "", "substring match against name or description")

	presetsExportCmd.Flags().StringVarP(&flagOutput, "output", "o", "presets.json", "output bundle file")
	presetsImportCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "overwrite presets with colliding names")

	presetsCmd.AddCommand(presetsListCmd, presetsShowCmd, presetsExportCmd, presetsImportCmd, presetsDeleteCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(serveCmd, presetsCmd, configCmd)
}

func presetsDir() string {
	if flagPresetsDir != "" {
		return flagPresetsDir
	}
	return filepath.Join(flagConfigDir, "presets")
}

func openStore() (*store.Store, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return store.Open(presetsDir(), logger)
}

func runServe(cmd *cobra.Command, args []string) error {
	srv, err := server.New(server.Config{
		Port:       flagPort,
		PresetsDir: presetsDir(),
		ConfigDir:  flagConfigDir,
	})
	if err != nil {
		return err
	}
	return srv.Run()
}

func runPresetsList(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}

	summaries := st.List(flagTags, flagSearch)
	if len(summaries) == 0 {
		fmt.Println("No presets found.")
		return nil
	}

	for _, s := range summaries {
		line := fmt.Sprintf("%s  %-30s  %d effects", s.ID, s.Name, s.EffectCount)
		if len(s.Tags) > 0 {
			line += "  [" + strings.Join(s.Tags, ", ") + "]"
		}
		fmt.Println(line)
	}
	return nil
}

func runPresetsShow(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid preset id: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	p, err := st.Get(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(p.Record(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runPresetsExport(cmd *cobra.Command, args []string) error {
	reporter := progress.NewReporter(os.Stdout, flagVerbose)

	ids := make([]uuid.UUID, 0, len(args))
	for _, raw := range args {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid preset id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	reporter.StartStage(progress.StageCollect)
	data, err := st.ExportBatch(ids)
	if err != nil {
		reporter.Error(err)
		return err
	}
	reporter.StageComplete("Collected %d record(s)", len(ids))

	reporter.StartStage(progress.StageWrite)
	if err := os.WriteFile(flagOutput, data, 0644); err != nil {
		reporter.Error(err)
		return fmt.Errorf("write bundle: %w", err)
	}
	reporter.Done(fmt.Sprintf("Exported to %s", flagOutput))
	return nil
}

func runPresetsImport(cmd *cobra.Command, args []string) error {
	reporter := progress.NewReporter(os.Stdout, flagVerbose)

	reporter.StartStage(progress.StageReadBundle)
	blob, err := os.ReadFile(args[0])
	if err != nil {
		reporter.Error(err)
		return fmt.Errorf("read bundle: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}

	reporter.StartStage(progress.StageImport)
	result, err := st.ImportBatch(blob, flagOverwrite)
	if err != nil {
		reporter.Error(err)
		return err
	}

	reporter.StartStage(progress.StageSummarize)
	for _, msg := range result.Errors {
		reporter.Warning("%s", msg)
	}
	reporter.Done(fmt.Sprintf("Imported %d, skipped %d, %d error(s)",
		result.Imported, result.Skipped, len(result.Errors)))
	return nil
}

func runPresetsDelete(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid preset id: %w", err)
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	if err := st.Delete(id); err != nil {
		return err
	}
	fmt.Printf("Deleted preset %s\n", id)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	svc, err := config.Open(flagConfigDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(svc.Snapshot(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
