package speciesexport

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"

	"github.com/opengs/speciesexport/serializer"
)

type Config struct {
	// Folder with index files, one per species
	SpeciesFolder string `mapstructure:"species-folder"`
	// Folder with input record files, flat or grouped by publication year
	PmidFolder string `mapstructure:"pmid-folder"`
	// Folder that receives output files
	OutputFolder string `mapstructure:"output-folder"`

	// Separator between fields of an index line
	Separator string `mapstructure:"separator"`
	// Filename tag of negative control input files and output files
	NegativeTag string `mapstructure:"negative-tag"`
	// Extension of input record files
	InputExtension string `mapstructure:"input-extension"`
	// Longest accepted input record line in bytes
	MaxLineBytes int `mapstructure:"max-line-bytes"`

	// Maximum number of records in one chunk and one output file
	Threshold int64 `mapstructure:"threshold"`
	// Records written between two checkpoint commits
	CommitInterval int64 `mapstructure:"commit-every"`
	// Fsync output file before every checkpoint save
	Sync bool `mapstructure:"sync"`

	// Output serializer, one of [serializer.Formats]
	Format string `mapstructure:"format"`
	// Extension of output files. Serializer default when empty
	OutputExtension string `mapstructure:"output-extension"`
	// Write buffer of the open output file in bytes
	BufferSize int `mapstructure:"buffer-size"`
	// Octal permissions of created output and checkpoint files
	FileMode string `mapstructure:"file-mode"`
}

func DefaultConfig() Config {
	return Config{
		Separator:      "\t",
		NegativeTag:    "_negative",
		InputExtension: ".jsonl",
		MaxLineBytes:   16 * 1024 * 1024,
		Threshold:      2000,
		CommitInterval: 1000,
		Sync:           true,
		Format:         "jsonl",
		BufferSize:     64 * 1024,
		FileMode:       "0644",
	}
}

// ParseFileMode reads octal permissions such as "0640".
func ParseFileMode(mode string) (os.FileMode, error) {
	perm, err := strconv.ParseUint(mode, 8, 32)
	if err != nil || perm > 0o777 {
		return 0, fmt.Errorf("file mode must be octal permissions like 0644, got %q", mode)
	}
	return os.FileMode(perm), nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.SpeciesFolder == "" {
		errs = append(errs, errors.New("species folder is required"))
	}
	if c.PmidFolder == "" {
		errs = append(errs, errors.New("pmid folder is required"))
	}
	if c.OutputFolder == "" {
		errs = append(errs, errors.New("output folder is required"))
	}
	if c.Separator == "" {
		errs = append(errs, errors.New("separator must not be empty"))
	}
	if c.NegativeTag == "" {
		errs = append(errs, errors.New("negative tag must not be empty"))
	}
	if c.MaxLineBytes <= 0 {
		errs = append(errs, fmt.Errorf("max line bytes must be positive, got %d", c.MaxLineBytes))
	}
	if c.Threshold <= 0 {
		errs = append(errs, fmt.Errorf("threshold must be positive, got %d", c.Threshold))
	}
	if c.CommitInterval <= 0 {
		errs = append(errs, fmt.Errorf("commit interval must be positive, got %d", c.CommitInterval))
	}
	if c.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("buffer size must be positive, got %d", c.BufferSize))
	}
	if _, err := ParseFileMode(c.FileMode); err != nil {
		errs = append(errs, err)
	}
	if !slices.Contains(serializer.Formats, c.Format) {
		errs = append(errs, fmt.Errorf("%w: %s", serializer.ErrUnknownFormat, c.Format))
	}
	return errors.Join(errs...)
}
