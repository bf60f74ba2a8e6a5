package writer

import "strconv"

// NameGenerator builds output file names without extension. Chunk id 0 means the name carries no chunk id.
type NameGenerator interface {
	Name(species string, chunkID int, negative bool) string
}

type NameGeneratorFunc func(species string, chunkID int, negative bool) string

func (f NameGeneratorFunc) Name(species string, chunkID int, negative bool) string {
	return f(species, chunkID, negative)
}

// SpeciesNamer produces <species>[_<chunk id>][<negative tag>].
type SpeciesNamer struct {
	NegativeTag string
}

func (n SpeciesNamer) Name(species string, chunkID int, negative bool) string {
	name := species
	if chunkID > 0 {
		name += "_" + strconv.Itoa(chunkID)
	}
	if negative {
		name += n.NegativeTag
	}
	return name
}
