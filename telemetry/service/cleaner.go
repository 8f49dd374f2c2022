package service

import (
	"regexp"
	"strings"

	"github.com/gitpod-io/workbench-telemetry/telemetry"
)

// RedactedPath replaces user file paths in event payloads.
const RedactedPath = "<REDACTED: user-file-path>"

// pathCleaner anonymizes absolute paths below the user's home directory.
// The home directory only matches when followed by a separator, a
// delimiter or the end of the value, so sibling directories sharing its
// prefix are left alone.
type pathCleaner struct {
	re *regexp.Regexp
}

func newPathCleaner(homeDir string) *pathCleaner {
	homeDir = strings.TrimRight(homeDir, "/\\")
	if homeDir == "" {
		return &pathCleaner{}
	}
	return &pathCleaner{
		re: regexp.MustCompile(regexp.QuoteMeta(homeDir) + `(?:[/\\][^\s'"()]*)?(?:$|([\s'"()]))`),
	}
}

// clean returns a copy of data with redacted string values. The input is not modified.
func (c *pathCleaner) clean(data telemetry.Data, extra int) telemetry.Data {
	result := make(telemetry.Data, len(data)+extra)
	for k, v := range data {
		if s, ok := v.(string); ok && c.re != nil {
			v = c.re.ReplaceAllString(s, RedactedPath+"${1}")
		}
		result[k] = v
	}
	return result
}
