package host

import (
	"fmt"

	"github.com/joho/godotenv"
)

// ReadEnvFileValues parses a dotenv file into a key/value map. Quoted values
// and export prefixes are handled by the parser.
func ReadEnvFileValues(path string) (map[string]string, error) {
	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}
	return values, nil
}
