package diffstat

import (
	"path"
	"strings"
)

// Scope returns the deepest directory shared by every file in files, or "."
// when they share none.
func Scope(files []string) string {
	if len(files) == 0 {
		return "."
	}

	dirs := make([][]string, len(files))
	for i, f := range files {
		dir := path.Dir(strings.ReplaceAll(f, "\\", "/"))
		if dir == "." || dir == "/" {
			dirs[i] = []string{}
		} else {
			dirs[i] = strings.Split(dir, "/")
		}
	}

	var common []string
	for i, component := range dirs[0] {
		for _, d := range dirs[1:] {
			if i >= len(d) || d[i] != component {
				return join(common)
			}
		}
		common = append(common, component)
	}
	return join(common)
}

func join(parts []string) string {
	if len(parts) == 0 {
		return "."
	}
	return strings.Join(parts, "/")
}
