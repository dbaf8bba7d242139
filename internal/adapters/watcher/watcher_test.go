package watcher

import (
	"testing"

	"github.com/fsnotify/fsnotify"
)

func TestFsnotifyOpToOperation(t *testing.T) {
	tests := []struct {
		name     string
		op       fsnotify.Op
		expected Operation
	}{
		{
			name:     "Remove returns OpDelete",
			op:       fsnotify.Remove,
			expected: OpDelete,
		},
		{
			name:     "Rename returns OpDelete",
			op:       fsnotify.Rename,
			expected: OpDelete,
		},
		{
			name:     "Create returns OpCreate",
			op:       fsnotify.Create,
			expected: OpCreate,
		},
		{
			name:     "Write returns OpModify",
			op:       fsnotify.Write,
			expected: OpModify,
		},
		{
			name:     "Chmod returns OpModify",
			op:       fsnotify.Chmod,
			expected: OpModify,
		},
		{
			name:     "Remove takes precedence over Write",
			op:       fsnotify.Remove | fsnotify.Write,
			expected: OpDelete,
		},
		{
			name:     "Rename takes precedence over Create",
			op:       fsnotify.Rename | fsnotify.Create,
			expected: OpDelete,
		},
		{
			name:     "Create takes precedence over Write",
			op:       fsnotify.Create | fsnotify.Write,
			expected: OpCreate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := fsnotifyOpToOperation(tt.op)
			if result != tt.expected {
				t.Errorf("fsnotifyOpToOperation(%v) = %v, want %v", tt.op, result, tt.expected)
			}
		})
	}
}

func TestUpdatePendingEvent(t *testing.T) {
	w := &Watcher{}

	tests := []struct {
		name     string
		existing Operation
		incoming Operation
		expected Operation
	}{
		{"delete then create is create", OpDelete, OpCreate, OpCreate},
		{"modify then delete is delete", OpModify, OpDelete, OpDelete},
		{"create then modify stays create", OpCreate, OpModify, OpCreate},
		{"modify then modify stays modify", OpModify, OpModify, OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pending := &pendingEvent{op: tt.existing}
			w.updatePendingEvent(pending, tt.incoming)
			if pending.op != tt.expected {
				t.Errorf("op = %v, want %v", pending.op, tt.expected)
			}
		})
	}
}

func TestIsRasterFile(t *testing.T) {
	w := &Watcher{extension: ".tif"}

	tests := []struct {
		path string
		want bool
	}{
		{"/data/air/a.tif", true},
		{"/data/air/A.TIF", true},
		{"/data/air/a.tiff", false},
		{"/data/air/notes.txt", false},
	}

	for _, tt := range tests {
		if got := w.isRasterFile(tt.path); got != tt.want {
			t.Errorf("isRasterFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestOperationString(t *testing.T) {
	if OpCreate.String() != "create" || OpModify.String() != "modify" || OpDelete.String() != "delete" {
		t.Error("operation names changed")
	}
	if Operation(99).String() != "unknown" {
		t.Error("unknown operation not reported")
	}
}
