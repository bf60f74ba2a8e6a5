package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/opengs/speciesexport/checkpoint"
)

// SpeciesUnit is one index line together with the input files it resolved to.
type SpeciesUnit struct {
	// Display name of the species. Name of the index file without extension
	Species string
	TaxID   int64
	// Ordered input files relative to the pmid folder
	PositiveFiles []string
	NegativeFiles []string
	// Declared number of records
	RecordCount int64
	// Raw file group from the index line
	FileInfo string

	// Ordinal of the index file the unit comes from
	IndexFile int
	// 0-based ordinal of the line among valid lines of its index file
	Line int
	// Sum of declared record counts of every valid line in the same index file
	SpeciesTotal int64
	// Number of valid lines in the same index file
	SpeciesLines int
}

// HasFiles reports whether the unit resolved to at least one input file.
func (u *SpeciesUnit) HasFiles() bool {
	return len(u.PositiveFiles) > 0 || len(u.NegativeFiles) > 0
}

// Position of the catalog used to restart iteration.
type Position struct {
	// Index files fully processed
	NumberFiles int
	// Valid lines of the next index file already processed
	SpeciesLine int
}

// Catalog lists species units declared by index files in the species folder and resolves their input files in the pmid folder.
type Catalog struct {
	speciesFS fs.FS
	pmidFS    fs.FS

	speciesFolder string
	pmidFolder    string

	separator   string
	negativeTag string
	extension   string

	logger *slog.Logger
}

func New(speciesFS fs.FS, pmidFS fs.FS, options ...CatalogOption) *Catalog {
	c := &Catalog{
		speciesFS:     speciesFS,
		pmidFS:        pmidFS,
		speciesFolder: "species",
		pmidFolder:    "pmid",
		separator:     "\t",
		negativeTag:   "_negative",
		extension:     ".jsonl",
		logger:        slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Validate checks that both folders exist, are directories and can be listed.
func (c *Catalog) Validate() error {
	if c.separator == "" {
		return errors.New("index separator must not be empty")
	}
	if err := checkDirectory(c.speciesFS, c.speciesFolder); err != nil {
		return err
	}
	if err := checkDirectory(c.pmidFS, c.pmidFolder); err != nil {
		return err
	}
	return nil
}

func checkDirectory(fsys fs.FS, label string) error {
	info, err := fs.Stat(fsys, ".")
	if err != nil {
		return &DirectoryError{Path: label, Err: err}
	}
	if !info.IsDir() {
		return &DirectoryError{Path: label, Err: errors.New("not a directory")}
	}
	if _, err := fs.ReadDir(fsys, "."); err != nil {
		return &DirectoryError{Path: label, Err: err}
	}
	return nil
}

// IndexFiles returns the index files of the species folder in processing order.
// Two files naming the same species fail with [ErrDuplicateSpecies].
func (c *Catalog) IndexFiles() ([]string, error) {
	entries, err := fs.ReadDir(c.speciesFS, ".")
	if err != nil {
		return nil, &DirectoryError{Path: c.speciesFolder, Err: err}
	}

	var files []string
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	// Output file names derive from the species name only.
	owners := map[string]string{}
	for _, name := range files {
		species := SpeciesName(name)
		if owner, ok := owners[species]; ok {
			return nil, fmt.Errorf("%w: %s and %s both declare species %s", ErrDuplicateSpecies, owner, name, species)
		}
		owners[species] = name
	}
	return files, nil
}

// SpeciesName is the index file name without its last extension.
func SpeciesName(indexFile string) string {
	return strings.TrimSuffix(indexFile, path.Ext(indexFile))
}

// Open starts iteration at `restart`. Zero position means a cold start.
func (c *Catalog) Open(ctx context.Context, restart Position) (*Iterator, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	files, err := c.IndexFiles()
	if err != nil {
		return nil, err
	}

	if restart.NumberFiles > len(files) || (restart.NumberFiles == len(files) && restart.SpeciesLine > 0) {
		return nil, fmt.Errorf("%w: %d index files processed but only %d exist in %s", checkpoint.ErrRestartContextIncomplete, restart.NumberFiles, len(files), c.speciesFolder)
	}

	return &Iterator{
		catalog:  c,
		files:    files,
		fileIdx:  restart.NumberFiles,
		skipLine: restart.SpeciesLine,
	}, nil
}

// Splits file info into the pmid folder directory to list and the publication id used as filename filter.
func splitFileInfo(fileInfo string) (string, string) {
	if i := strings.LastIndex(fileInfo, "/"); i >= 0 {
		return fileInfo[:i], fileInfo[i+1:]
	}
	return ".", fileInfo
}

// The id must be followed by a non digit so that id 12 does not pick up files of id 123.
func matchesID(name string, id string) bool {
	if !strings.HasPrefix(name, id) {
		return false
	}
	if len(name) == len(id) {
		return true
	}
	next := name[len(id)]
	return next < '0' || next > '9'
}

func (c *Catalog) resolveFiles(ctx context.Context, fileInfo string) ([]string, []string) {
	dir, id := splitFileInfo(fileInfo)

	entries, err := fs.ReadDir(c.pmidFS, dir)
	if err != nil {
		c.logger.WarnContext(ctx, "failed to list input files", "folder", path.Join(c.pmidFolder, dir), "fileInfo", fileInfo, "error", err)
		return nil, nil
	}

	negativeSuffix := c.negativeTag + c.extension
	var positive, negative []string
	for _, entry := range entries {
		if entry.IsDir() || !matchesID(entry.Name(), id) {
			continue
		}

		name := entry.Name()
		switch {
		case strings.HasSuffix(name, negativeSuffix):
			negative = append(negative, path.Join(dir, name))
		case strings.HasSuffix(name, c.extension):
			positive = append(positive, path.Join(dir, name))
		}
	}
	return positive, negative
}
