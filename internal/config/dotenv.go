package config

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// LoadDotEnvUp walks from the working directory up to maxDepth parents and
// loads the first ".env" it finds. Variables already set in the process win.
// Returns the loaded path, or "" when none was found.
func LoadDotEnvUp(maxDepth int) string {
	if maxDepth <= 0 {
		maxDepth = 6
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i <= maxDepth; i++ {
		p := filepath.Join(dir, ".env")
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			if godotenv.Load(p) == nil {
				return p
			}
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
