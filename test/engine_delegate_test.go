package test

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// TestEngine_DelegateMethodComplexity ensures that public methods on Engine
// stay below a maximum line count. Methods exceeding the threshold likely
// contain inline business logic that belongs in a subpackage
// (jwt, refresh, keyring, breach, blacklist).
//
// Allowed exceptions must be explicitly listed below with mandatory
// metadata:
// - Reason: why the exception exists
// - Target: the subpackage the logic should migrate to
// - RemoveBy: a version or milestone when the exception should be removed
//
// Exceptions without this metadata are rejected at test time to prevent
// permanent exception creep.
func TestEngine_DelegateMethodComplexity(t *testing.T) {
	const maxLines = 50

	// delegateException describes one allowed exception to the delegate
	// complexity limit. All fields are required — if an entry is missing
	// reason, target, or removeBy, the test will fail to force cleanup.
	type delegateException struct {
		limit    int    // maximum allowed lines for this method
		reason   string // why the exception is needed
		target   string // subpackage the logic should migrate to
		removeBy string // version or milestone when this should be removed
	}

	// Empty today: every facade method fits the budget. New entries need
	// full metadata.
	exceptions := map[string]delegateException{}

	// Validate that every exception has complete metadata — prevents "permanent exceptions".
	for name, exc := range exceptions {
		if exc.reason == "" {
			t.Errorf("exception %q missing reason", name)
		}
		if exc.target == "" {
			t.Errorf("exception %q missing target subpackage", name)
		}
		if exc.removeBy == "" {
			t.Errorf("exception %q missing removeBy version/milestone", name)
		}
	}

	funcSig := regexp.MustCompile(`^func \(e \*Engine\) ([A-Za-z]\w*)\(`)

	files, err := filepath.Glob("../*.go")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(files) == 0 {
		t.Fatal("no root source files found")
	}

	type methodInfo struct {
		name  string
		start int
		depth int
	}

	var violations []string
	for _, filename := range files {
		if strings.HasSuffix(filename, "_test.go") {
			continue
		}

		f, err := os.Open(filename)
		if err != nil {
			t.Fatalf("open %s: %v", filename, err)
		}

		scanner := bufio.NewScanner(f)
		lineNum := 0
		var current *methodInfo

		for scanner.Scan() {
			lineNum++
			line := scanner.Text()

			if current == nil {
				if m := funcSig.FindStringSubmatch(line); m != nil {
					current = &methodInfo{
						name:  m[1],
						start: lineNum,
						depth: strings.Count(line, "{") - strings.Count(line, "}"),
					}
					continue
				}
			}

			if current != nil {
				current.depth += strings.Count(line, "{") - strings.Count(line, "}")
				if current.depth <= 0 {
					length := lineNum - current.start + 1
					limit := maxLines
					if exc, ok := exceptions[current.name]; ok {
						limit = exc.limit
					}
					if length > limit {
						violations = append(violations, current.name)
						t.Errorf("%s:%d: method %s is %d lines (limit %d); move business logic to a subpackage",
							filename, current.start, current.name, length, limit)
					}
					current = nil
				}
			}
		}

		if err := scanner.Err(); err != nil {
			f.Close()
			t.Fatalf("scan %s: %v", filename, err)
		}
		f.Close()
	}

	if len(violations) > 0 {
		t.Logf("Detected %d method(s) exceeding their line budget. "+
			"Business logic should live in the subpackages; "+
			"root methods should be thin delegates.",
			len(violations))
	}
}
