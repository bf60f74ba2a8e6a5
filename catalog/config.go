package catalog

import "log/slog"

type CatalogOption func(c *Catalog)

// Separator between the fields of an index line. Default is tab.
func WithSeparator(separator string) CatalogOption {
	return func(c *Catalog) {
		c.separator = separator
	}
}

// Filename tag that marks negative control files. Default is "_negative".
func WithNegativeTag(tag string) CatalogOption {
	return func(c *Catalog) {
		c.negativeTag = tag
	}
}

// Extension of input record files. Default is ".jsonl".
func WithExtension(extension string) CatalogOption {
	return func(c *Catalog) {
		c.extension = extension
	}
}

// Folder names used in diagnostics and errors.
func WithFolderPaths(speciesFolder string, pmidFolder string) CatalogOption {
	return func(c *Catalog) {
		c.speciesFolder = speciesFolder
		c.pmidFolder = pmidFolder
	}
}

func WithLogger(logger *slog.Logger) CatalogOption {
	return func(c *Catalog) {
		c.logger = logger
	}
}
