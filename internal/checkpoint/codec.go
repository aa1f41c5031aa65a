package checkpoint

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hollis-day/autopilot/internal/errs"
)

// FileSnapshot captures one file's content at checkpoint time.
type FileSnapshot struct {
	Path    string
	Hash    string
	Content []byte
}

// Checkpoint is a restorable snapshot of a file set. Immutable once
// written; only compaction deletes checkpoint records.
type Checkpoint struct {
	ID        string
	SessionID string
	Phase     int
	CreatedAt time.Time
	GitCommit string
	Files     []FileSnapshot
}

// fileHeaderPrefix introduces a per-file content block. The header
// carries the content hash, exact byte length, and path (last, so
// paths containing spaces survive); the explicit length lets arbitrary
// content (including newlines and blank lines) round-trip.
const fileHeaderPrefix = ">>> "

// encode serializes a checkpoint to the persisted text format:
// a front-matter block, a blank line, then per-file content blocks.
func encode(cp Checkpoint) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "checkpointId: %s\n", cp.ID)
	fmt.Fprintf(&buf, "sessionId: %s\n", cp.SessionID)
	fmt.Fprintf(&buf, "phase: %d\n", cp.Phase)
	fmt.Fprintf(&buf, "createdAt: %d\n", cp.CreatedAt.UnixMilli())
	if cp.GitCommit != "" {
		fmt.Fprintf(&buf, "gitCommit: %s\n", cp.GitCommit)
	}
	fmt.Fprintf(&buf, "fileCount: %d\n", len(cp.Files))
	buf.WriteByte('\n')

	for _, f := range cp.Files {
		fmt.Fprintf(&buf, "%s%s %d %s\n", fileHeaderPrefix, f.Hash, len(f.Content), f.Path)
		buf.Write(f.Content)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// decode parses the persisted text format back into a checkpoint.
// Any structural violation returns an error wrapping ErrCheckpointCorrupt.
func decode(data []byte) (Checkpoint, error) {
	var cp Checkpoint
	pos := 0

	// Front matter runs until the first blank line.
	var fileCount = -1
	for pos < len(data) {
		line, next := readLine(data, pos)
		pos = next
		if line == "" {
			break
		}
		key, value, ok := strings.Cut(line, ": ")
		if !ok {
			return Checkpoint{}, corrupt("malformed front-matter line %q", line)
		}
		switch key {
		case "checkpointId":
			cp.ID = value
		case "sessionId":
			cp.SessionID = value
		case "phase":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Checkpoint{}, corrupt("invalid phase %q", value)
			}
			cp.Phase = n
		case "createdAt":
			ms, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Checkpoint{}, corrupt("invalid createdAt %q", value)
			}
			cp.CreatedAt = time.UnixMilli(ms)
		case "gitCommit":
			cp.GitCommit = value
		case "fileCount":
			n, err := strconv.Atoi(value)
			if err != nil {
				return Checkpoint{}, corrupt("invalid fileCount %q", value)
			}
			fileCount = n
		default:
			// Unknown keys are tolerated so the format can grow.
		}
	}
	if cp.ID == "" || cp.SessionID == "" || fileCount < 0 {
		return Checkpoint{}, corrupt("missing required front matter")
	}

	for pos < len(data) {
		header, next := readLine(data, pos)
		pos = next
		if header == "" {
			continue
		}
		if !strings.HasPrefix(header, fileHeaderPrefix) {
			return Checkpoint{}, corrupt("expected file header, got %q", header)
		}
		fields := strings.SplitN(header[len(fileHeaderPrefix):], " ", 3)
		if len(fields) != 3 || fields[2] == "" {
			return Checkpoint{}, corrupt("malformed file header %q", header)
		}
		length, err := strconv.Atoi(fields[1])
		if err != nil || length < 0 {
			return Checkpoint{}, corrupt("invalid content length in %q", header)
		}
		if pos+length > len(data) {
			return Checkpoint{}, corrupt("truncated content for %q", fields[2])
		}
		content := make([]byte, length)
		copy(content, data[pos:pos+length])
		pos += length
		// Skip the newline terminating the content block.
		if pos < len(data) && data[pos] == '\n' {
			pos++
		}
		cp.Files = append(cp.Files, FileSnapshot{
			Path:    fields[2],
			Hash:    fields[0],
			Content: content,
		})
	}

	if len(cp.Files) != fileCount {
		return Checkpoint{}, corrupt("fileCount %d does not match %d file blocks", fileCount, len(cp.Files))
	}
	return cp, nil
}

// readLine returns the text up to the next newline and the position
// immediately after it.
func readLine(data []byte, pos int) (string, int) {
	idx := bytes.IndexByte(data[pos:], '\n')
	if idx < 0 {
		return string(data[pos:]), len(data)
	}
	return string(data[pos : pos+idx]), pos + idx + 1
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errs.ErrCheckpointCorrupt, fmt.Sprintf(format, args...))
}
