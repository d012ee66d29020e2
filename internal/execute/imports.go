package execute

import (
	"fmt"
	"regexp"
	"strings"
)

// stdlibModules are Python standard-library modules generated experiment
// scripts commonly reach for. Anything outside this set and the configured
// allow-list is rejected before execution.
var stdlibModules = map[string]bool{
	"abc": true, "argparse": true, "bisect": true, "collections": true,
	"copy": true, "csv": true, "dataclasses": true, "datetime": true,
	"decimal": true, "enum": true, "functools": true, "heapq": true,
	"io": true, "itertools": true, "json": true, "math": true,
	"operator": true, "os": true, "pathlib": true, "pprint": true,
	"random": true, "re": true, "statistics": true, "string": true,
	"sys": true, "textwrap": true, "time": true, "typing": true,
	"warnings": true,
}

var importLineRe = regexp.MustCompile(`(?m)^\s*(?:import|from)\s+([A-Za-z_][A-Za-z0-9_]*)`)

// CheckImports verifies every top-level import in the script against the
// allow-list. The check runs on source text, not a real module resolver,
// so aliased and nested imports are judged by their root module name.
func (r *Runner) CheckImports(code string) error {
	var rejected []string
	seen := map[string]bool{}

	for _, m := range importLineRe.FindAllStringSubmatch(code, -1) {
		module := m[1]
		if seen[module] {
			continue
		}
		seen[module] = true

		if stdlibModules[module] || r.allowed[module] {
			continue
		}
		rejected = append(rejected, module)
	}

	if len(rejected) > 0 {
		return fmt.Errorf("script imports modules outside the allow-list: %s", strings.Join(rejected, ", "))
	}
	return nil
}
