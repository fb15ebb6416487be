// Command jugadb is the self-hosted engine's CLI entrypoint (spec
// §1/§6): it opens (or bootstraps) a database directory and either
// runs one statement passed with -c, executes a script file, or reads
// statements from stdin, one per line, printing each ExecutionResult
// as it completes.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/jugadbase/jugadb/internal/dblog"
	"github.com/jugadbase/jugadb/internal/engine"
	"github.com/jugadbase/jugadb/internal/types"
	"github.com/spf13/cobra"
)

var (
	dataDir string
	command string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "jugadb:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "jugadb",
	Short: "jugadb - a self-hosted relational database engine",
	Long:  "A single-process relational database engine with a paged heap, B-tree indexes, and a self-hosted SQL catalog.",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVarP(&dataDir, "data-dir", "d", "./jugadb-data", "database directory (created if missing)")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single SQL statement and exit")
}

func run(cmd *cobra.Command, args []string) error {
	sink := dblog.NewSlogSink(slog.LevelInfo)
	db, err := engine.Open(dataDir, engine.Options{Sink: sink})
	if err != nil {
		return fmt.Errorf("opening %s: %w", dataDir, err)
	}
	defer db.Close()

	if command != "" {
		return runStatement(db, command)
	}
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return runScript(db, string(data))
	}
	return runInteractive(db, os.Stdin)
}

// runScript executes every `;`-terminated statement in src in order,
// stopping at the first error.
func runScript(db *engine.Database, src string) error {
	for _, stmt := range splitStatements(src) {
		if err := runStatement(db, stmt); err != nil {
			return err
		}
	}
	return nil
}

// runInteractive reads one statement per line from r until EOF,
// tolerating a trailing unterminated line.
func runInteractive(db *engine.Database, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if err := runStatement(db, line); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
	}
	return scanner.Err()
}

func splitStatements(src string) []string {
	var out []string
	for _, part := range strings.Split(src, ";") {
		s := strings.TrimSpace(part)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func runStatement(db *engine.Database, sql string) error {
	res, err := db.Exec(sql)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func printResult(res *engine.Result) {
	if res == nil {
		return
	}
	if len(res.Rows) > 0 {
		fmt.Println(strings.Join(res.Aliases, "\t"))
		for _, row := range res.Rows {
			cells := make([]string, len(row))
			for i, v := range row {
				cells[i] = formatValue(v)
			}
			fmt.Println(strings.Join(cells, "\t"))
		}
	}
	if res.Message != "" {
		fmt.Println(res.Message)
	}
	fmt.Printf("(%d row(s) affected)\n", res.RowsAffected)
}

// formatValue renders a ColumnValue for terminal display; it does not
// attempt to reproduce SQL literal syntax, just a readable cell.
func formatValue(v types.ColumnValue) string {
	if v.IsNull {
		return "NULL"
	}
	switch v.Kind {
	case types.KindVarchar, types.KindText, types.KindChar, types.KindJSON:
		return v.Str
	case types.KindBlob:
		return fmt.Sprintf("<%d bytes>", len(v.Blob))
	case types.KindBool:
		return strconv.FormatBool(v.Bool)
	case types.KindInt, types.KindSerial:
		return strconv.FormatInt(v.Int, 10)
	case types.KindUint:
		return strconv.FormatUint(v.Uint, 10)
	case types.KindFloat:
		return strconv.FormatFloat(float64(v.Float32), 'g', -1, 32)
	case types.KindDouble:
		return strconv.FormatFloat(v.Float64, 'g', -1, 64)
	case types.KindUUID:
		return v.UUID.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
