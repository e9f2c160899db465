package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/redreader/internal/config"
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create config directory with an example config",
	RunE:  initAction,
}

func initAction(_ *cobra.Command, _ []string) error {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	configPath := filepath.Join(configDir, config.DefaultConfigFile)
	wrote, err := writeIfNotExists(configPath, []byte(exampleConfig))
	if err != nil {
		return err
	}

	if !wrote {
		fmt.Printf("Config directory %s already initialized.\n", configDir)
	} else {
		fmt.Printf("Initialized %s.\n", configDir)
	}
	return nil
}

// writeIfNotExists writes data to path if the file does not exist.
// Returns true if the file was created.
func writeIfNotExists(path string, data []byte) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("  exists: %s\n", path)
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Printf("  created: %s\n", path)
	return true, nil
}

const exampleConfig = `# redreader configuration

feed:
  base_url: https://www.reddit.com
  user_agent: "web:redreader:v1.0.0 (by /u/redreader_dev)"
  timeout: 30s
  page_size: 25
  default_sort: hot
  # default_time: week

saved:
  path: .redreader/redreader.db
  scope: anonymous
  # remote_url: http://localhost:8080
  token_env: REDREADER_TOKEN
  remote_delete: false

server:
  addr: ":8080"
  path: .redreader/server.db
  jwt_secret_env: JWT_SECRET
  enable_delete: false

log:
  level: info
  format: text

privacy:
  redact:
    enabled: false
    patterns: []
`
