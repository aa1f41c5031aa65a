package checkpoint

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hollis-day/autopilot/internal/errs"
	"github.com/hollis-day/autopilot/internal/storage"
)

func sampleCheckpoint() Checkpoint {
	return Checkpoint{
		ID:        "phase-2-1756200000000",
		SessionID: "sess-alpha",
		Phase:     2,
		CreatedAt: time.UnixMilli(1756200000000),
		GitCommit: "abc1234def",
		Files: []FileSnapshot{
			{Path: "src/main.go", Hash: storage.CalculateHash([]byte("package main\n")), Content: []byte("package main\n")},
			{Path: "notes/todo list.md", Hash: storage.CalculateHash([]byte("- one\n\n- two")), Content: []byte("- one\n\n- two")},
		},
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	want := sampleCheckpoint()

	got, err := decode(encode(want))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_RoundTripNoCommitNoFiles(t *testing.T) {
	want := Checkpoint{
		ID:        "phase-1-1756200000001",
		SessionID: "sess-beta",
		Phase:     1,
		CreatedAt: time.UnixMilli(1756200000001),
	}

	data := encode(want)
	if strings.Contains(string(data), "gitCommit") {
		t.Error("empty commit reference should be omitted from the record")
	}

	got, err := decode(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCodec_RoundTripEmptyFileContent(t *testing.T) {
	want := Checkpoint{
		ID:        "phase-3-1756200000002",
		SessionID: "sess-gamma",
		Phase:     3,
		CreatedAt: time.UnixMilli(1756200000002),
		Files: []FileSnapshot{
			{Path: "empty.txt", Hash: storage.CalculateHash(nil), Content: []byte{}},
		},
	}

	got, err := decode(encode(want))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(got.Files) != 1 || len(got.Files[0].Content) != 0 {
		t.Errorf("expected one empty file, got %+v", got.Files)
	}
}

func TestCodec_DecodeRejectsCorruptRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"garbage", "not a checkpoint at all"},
		{"missing front matter", "checkpointId: phase-1-1\n\n"},
		{"bad phase", "checkpointId: x\nsessionId: s\nphase: two\nfileCount: 0\n\n"},
		{"bad file count", "checkpointId: x\nsessionId: s\nphase: 1\ncreatedAt: 1\nfileCount: nope\n\n"},
		{"count mismatch", "checkpointId: x\nsessionId: s\nphase: 1\ncreatedAt: 1\nfileCount: 2\n\n"},
		{"truncated content", "checkpointId: x\nsessionId: s\nphase: 1\ncreatedAt: 1\nfileCount: 1\n\n>>> deadbeef 100 a.txt\nshort\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decode([]byte(tt.data))
			if err == nil {
				t.Fatal("expected decode error")
			}
			if !errs.Is(err, errs.ErrCheckpointCorrupt) {
				t.Errorf("expected ErrCheckpointCorrupt, got %v", err)
			}
		})
	}
}
