package config

import (
	"os"

	"github.com/BartekS5/ida/pkg/models"
)

// LoadMapping reads the source mapping file at path and completes it with
// the defaults. An empty path means the defaults alone. A non-empty
// database overrides the one in the file.
func LoadMapping(path, database string) (*models.SourceMapping, error) {
	var m *models.SourceMapping
	if path == "" {
		m = models.DefaultMapping()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, models.WrapError(models.ErrInvalidMapping, err, "read mapping file '%s'", path)
		}
		if m, err = models.LoadMapping(data); err != nil {
			return nil, err
		}
	}
	if database != "" {
		m.Database = database
	}
	return m, nil
}
