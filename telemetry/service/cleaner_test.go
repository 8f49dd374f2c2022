package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
)

func TestPathCleaner(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"home only", "/home/gitpod", RedactedPath},
		{"file below home", "open /home/gitpod/secret.txt", "open " + RedactedPath},
		{"stack frame", "at foo (/home/gitpod/src/main.go:10:3)", "at foo (" + RedactedPath + ")"},
		{"quoted paths", `'/home/gitpod/a' and "/home/gitpod/b"`, `'` + RedactedPath + `' and "` + RedactedPath + `"`},
		{"sibling directory", "open /home/gitpodder/secret.txt", "open /home/gitpodder/secret.txt"},
		{"sibling at end", "cd /home/gitpod2", "cd /home/gitpod2"},
		{"unrelated", "/usr/lib/node", "/usr/lib/node"},
	}
	cleaner := newPathCleaner("/home/gitpod/")
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cleaned := cleaner.clean(telemetry.Data{"value": tc.input}, 0)
			assert.Equal(t, tc.want, cleaned["value"])
		})
	}
}

func TestPathCleanerWithoutHome(t *testing.T) {
	cleaned := newPathCleaner("").clean(telemetry.Data{"value": "/home/gitpod/a"}, 0)
	assert.Equal(t, "/home/gitpod/a", cleaned["value"])
}
