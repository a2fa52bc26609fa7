package cli

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadConfigArgs returns extra command-line arguments from the user's
// config file, to be prepended so the real command line wins. The file
// lives at $REGLENS_CONFIG_PATH, or ~/.reglens when the variable is
// unset, and holds one argument per line; blank lines and # comments
// are skipped. Returns nil when no config file exists.
func LoadConfigArgs() []string {
	path := os.Getenv("REGLENS_CONFIG_PATH")
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		path = filepath.Join(home, ".reglens")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var args []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		args = append(args, line)
	}
	return args
}
