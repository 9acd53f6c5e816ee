package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/cooperativa/registro/internal/schema"
	"github.com/cooperativa/registro/internal/snapshot"
	"github.com/cooperativa/registro/internal/ui"
	"github.com/cooperativa/registro/internal/workbook"
)

const formatXLSX = "xlsx"

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: "data",
	Short:   "Export every table to a workbook or a dump file",
	Long: `Export the whole dataset.

The default format is an .xlsx workbook with one sheet per table. JSON and
YAML dumps carry the same data. Without -o the dump is written to stdout;
a workbook needs -o or --base64.

Examples:
  registro export -o registro.xlsx
  registro export --format yaml > registro.yaml
  registro export --base64 > registro.xlsx.b64`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")
		encode, _ := cmd.Flags().GetBool("base64")

		format, err := resolveFormat(format, output, formatXLSX)
		if err != nil {
			return err
		}
		if format != formatXLSX && encode {
			return fmt.Errorf("--base64 only applies to xlsx workbooks")
		}
		if format == formatXLSX && output == "" && !encode {
			return fmt.Errorf("refusing to write a binary workbook to stdout: pass -o or --base64")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		snap, err := a.engine.Export(cmd.Context())
		if err != nil {
			return err
		}

		data, err := encodeSnapshot(snap, format, encode)
		if err != nil {
			return err
		}

		if output == "" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := workbook.WriteFile(output, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "%s Exported %s rows to %s\n", ui.RenderPass("✓"), ui.Count(snap.Total()), output)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:     "import <file>",
	GroupID: "data",
	Short:   "Replace every table with the contents of a workbook or dump",
	Long: `Import a workbook (.xlsx) or a JSON/YAML dump, replacing the current data.

Rows that fail validation are dropped and counted. The import is not
atomic: if it fails midway, the tables already processed keep the new data.
Use --backup to write a dump of the current data first.

Examples:
  registro import registro.xlsx
  registro import --yes --backup backups/ registro.json
  registro import --base64 registro.xlsx.b64`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		format, _ := cmd.Flags().GetString("format")
		encoded, _ := cmd.Flags().GetBool("base64")
		yes, _ := cmd.Flags().GetBool("yes")
		backupDir, _ := cmd.Flags().GetString("backup")

		format, err := resolveFormat(format, strings.TrimSuffix(path, ".b64"), "")
		if err != nil {
			return err
		}
		if format != formatXLSX && encoded {
			return fmt.Errorf("--base64 only applies to xlsx workbooks")
		}
		snap, err := loadSnapshot(path, format, encoded)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "\n%s %s\n\n", ui.RenderAccent("📥"), filepath.Base(path))
		fmt.Fprint(out, countsTable(snap.Count))

		if !yes {
			ok, err := confirm(fmt.Sprintf("Replace all data with %s rows?", ui.Count(snap.Total())))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "Import cancelled")
				return nil
			}
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if backupDir != "" {
			backup, err := a.engine.Backup(cmd.Context(), backupDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s Backup written to %s\n", ui.RenderPass("✓"), backup)
		}

		result, err := a.engine.Import(cmd.Context(), snap)
		printResult(out, result)
		if err != nil {
			fmt.Fprintf(out, "%s Import stopped; tables above were already replaced\n", ui.RenderWarn("⚠"))
			return err
		}
		fmt.Fprintf(out, "%s Imported %s rows\n", ui.RenderPass("✓"), ui.Count(result.Total()))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file (default: stdout)")
	exportCmd.Flags().String("format", "", "Output format: xlsx, json or yaml (default: from -o extension, else xlsx)")
	exportCmd.Flags().Bool("base64", false, "Encode the workbook as base64 text")

	importCmd.Flags().String("format", "", "Input format: xlsx, json or yaml (default: from file extension)")
	importCmd.Flags().Bool("base64", false, "Input is a base64-encoded workbook")
	importCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	importCmd.Flags().String("backup", "", "Directory to write a dump of the current data to before importing")

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}

// resolveFormat returns the explicit format if given, else the one implied
// by the file extension, else fallback.
func resolveFormat(explicit, path, fallback string) (string, error) {
	if explicit != "" {
		switch f := strings.ToLower(explicit); f {
		case formatXLSX, string(snapshot.FormatJSON), string(snapshot.FormatYAML):
			return f, nil
		case "yml":
			return string(snapshot.FormatYAML), nil
		default:
			return "", fmt.Errorf("unknown format %q (want xlsx, json or yaml)", explicit)
		}
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return formatXLSX, nil
	case ".json":
		return string(snapshot.FormatJSON), nil
	case ".yaml", ".yml":
		return string(snapshot.FormatYAML), nil
	}
	if fallback == "" {
		return "", fmt.Errorf("cannot tell the format of %s: pass --format", path)
	}
	return fallback, nil
}

func encodeSnapshot(snap *schema.Snapshot, format string, base64 bool) ([]byte, error) {
	var buf bytes.Buffer
	switch format {
	case formatXLSX:
		data, err := workbook.Build(snap)
		if err != nil {
			return nil, err
		}
		if base64 {
			return []byte(workbook.EncodeBase64(data) + "\n"), nil
		}
		return data, nil
	case string(snapshot.FormatYAML):
		if err := snapshot.WriteYAML(&buf, snap); err != nil {
			return nil, err
		}
	default:
		if err := snapshot.WriteJSON(&buf, snap); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func loadSnapshot(path, format string, base64 bool) (*schema.Snapshot, error) {
	data, err := workbook.ReadFile(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case formatXLSX:
		if base64 {
			if data, err = workbook.DecodeBase64(string(data)); err != nil {
				return nil, err
			}
		}
		return workbook.Parse(data)
	case string(snapshot.FormatYAML):
		return snapshot.ReadYAML(bytes.NewReader(data))
	default:
		return snapshot.ReadJSON(bytes.NewReader(data))
	}
}

// confirm asks a yes/no question on the terminal. Without a terminal it
// refuses rather than guessing.
func confirm(question string) (bool, error) {
	if !ui.IsTerminal(os.Stdin) {
		return false, fmt.Errorf("confirmation needed but stdin is not a terminal: pass --yes")
	}

	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Description("Existing rows in every table are deleted first.").
			Affirmative("Replace").
			Negative("Cancel").
			Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return ok, nil
}

// countsTable renders the row count of every data table.
func countsTable(count func(schema.Table) int) string {
	rows := make([][]string, 0, len(schema.Tables()))
	for _, t := range schema.Tables() {
		rows = append(rows, []string{string(t), ui.Count(count(t))})
	}
	return ui.Table([]string{"table", "rows"}, rows)
}

func printResult(w io.Writer, result *snapshot.Result) {
	if result == nil || len(result.Tables) == 0 {
		return
	}
	rows := make([][]string, 0, len(result.Tables))
	for _, tr := range result.Tables {
		dropped := ui.Count(tr.Dropped)
		if tr.Dropped > 0 {
			dropped = ui.RenderWarn(dropped)
		}
		rows = append(rows, []string{string(tr.Table), ui.Count(tr.Total), dropped})
	}
	fmt.Fprintf(w, "\n%s", ui.Table([]string{"table", "written", "dropped"}, rows))
}
