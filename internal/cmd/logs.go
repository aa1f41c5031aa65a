package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hollis-day/autopilot/internal/config"
	"github.com/hollis-day/autopilot/internal/logging"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View session logs",
	Long: `View and filter the debug log autopilot writes to the session
directory.

Examples:
  # Show the last 50 lines
  autopilot logs

  # Show everything at warn or above
  autopilot logs --level warn -n 0

  # Follow logs in real-time
  autopilot logs -f

  # Logs for one task from the last hour
  autopilot logs --task hello --since 1h

  # Export as JSON
  autopilot logs --export out.json`,
	RunE: runLogs,
}

var (
	logsTail    int
	logsFollow  bool
	logsLevel   string
	logsSince   string
	logsTaskID  string
	logsSession string
	logsExport  string
)

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().IntVarP(&logsTail, "tail", "n", 50, "Number of lines to show (0 for all)")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output (like tail -f)")
	logsCmd.Flags().StringVar(&logsLevel, "level", "", "Filter by minimum level (debug/info/warn/error)")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show logs since duration ago (e.g., 1h, 30m)")
	logsCmd.Flags().StringVar(&logsTaskID, "task", "", "Filter by task ID")
	logsCmd.Flags().StringVarP(&logsSession, "session", "s", "", "Filter by session ID")
	logsCmd.Flags().StringVar(&logsExport, "export", "", "Export matching entries to a file (.json or .csv)")
}

// ANSI color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorGray   = "\033[90m"
	colorBlue   = "\033[34m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorCyan   = "\033[36m"
)

// levelColor returns the ANSI color code for a log level
func levelColor(level string) string {
	switch strings.ToUpper(level) {
	case logging.LevelDebug:
		return colorGray
	case logging.LevelInfo:
		return colorBlue
	case logging.LevelWarn:
		return colorYellow
	case logging.LevelError:
		return colorRed
	default:
		return colorReset
	}
}

// formatLogEntry formats a log entry for terminal output
func formatLogEntry(entry logging.LogEntry) string {
	var sb strings.Builder

	sb.WriteString(colorGray)
	sb.WriteString("[")
	sb.WriteString(entry.Timestamp.Format("15:04:05.000"))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	sb.WriteString(" ")
	sb.WriteString(levelColor(entry.Level))
	sb.WriteString("[")
	sb.WriteString(strings.ToUpper(entry.Level))
	sb.WriteString("]")
	sb.WriteString(colorReset)

	sb.WriteString(" ")
	sb.WriteString(entry.Message)

	if entry.TaskID != "" {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString("task_id=")
		sb.WriteString(entry.TaskID)
		sb.WriteString(colorReset)
	}
	if entry.Phase != "" {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString("phase=")
		sb.WriteString(entry.Phase)
		sb.WriteString(colorReset)
	}

	for key, value := range entry.Attrs {
		sb.WriteString(" ")
		sb.WriteString(colorCyan)
		sb.WriteString(key)
		sb.WriteString("=")
		sb.WriteString(colorReset)
		sb.WriteString(fmt.Sprintf("%v", value))
	}

	return sb.String()
}

// buildLogFilter turns flag values into a logging filter.
func buildLogFilter() (logging.LogFilter, error) {
	filter := logging.LogFilter{
		TaskID:    logsTaskID,
		SessionID: logsSession,
	}

	if logsLevel != "" {
		filter.Level = logging.ParseLevel(logsLevel)
	}
	if logsSince != "" {
		duration, err := time.ParseDuration(logsSince)
		if err != nil {
			return filter, fmt.Errorf("invalid duration format: %w", err)
		}
		filter.StartTime = time.Now().Add(-duration)
	}
	return filter, nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	workspace, err := resolveWorkspace(cfg)
	if err != nil {
		return err
	}
	sessionDir := cfg.Paths.ResolveSessionDir(workspace)

	filter, err := buildLogFilter()
	if err != nil {
		return err
	}

	if logsFollow {
		return followLogs(filepath.Join(sessionDir, "debug.log"), filter)
	}

	entries, err := logging.AggregateLogs(sessionDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Println("No logs found.")
			fmt.Println("Logs are written to:", filepath.Join(sessionDir, "debug.log"))
			return nil
		}
		return fmt.Errorf("failed to read logs: %w", err)
	}

	entries = logging.FilterLogs(entries, filter)

	if logsExport != "" {
		format := strings.TrimPrefix(filepath.Ext(logsExport), ".")
		if err := logging.ExportLogEntries(entries, logsExport, format); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}
		fmt.Printf("Exported %d entries to %s\n", len(entries), logsExport)
		return nil
	}

	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}
	for _, entry := range entries {
		fmt.Println(formatLogEntry(entry))
	}
	if len(entries) == 0 {
		fmt.Println("No matching log entries found.")
	}
	return nil
}

// followLogs implements tail -f behavior for the log file
func followLogs(logPath string, filter logging.LogFilter) error {
	file, err := os.Open(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	// Seek to end of file
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}

	fmt.Printf("Following logs... (Ctrl+C to stop)\n\n")

	reader := bufio.NewReader(file)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				// No new data, wait briefly and try again
				time.Sleep(100 * time.Millisecond)
				continue
			}
			return fmt.Errorf("error reading log file: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		var entry logging.LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			// Not JSON, display the raw line
			fmt.Println(line)
			continue
		}

		matched := logging.FilterLogs([]logging.LogEntry{entry}, filter)
		if len(matched) == 0 {
			continue
		}
		fmt.Println(formatLogEntry(matched[0]))
	}
}
