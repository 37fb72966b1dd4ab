// Package comicinfo defines the embedded comic metadata schema and the
// archive reader/writer that stores it.
//
// Field enumerates every ComicInfo.xml element shortbox can propose, diff, or
// write; Metadata is the typed record holding one value per Field. Get and Set
// switch over the full enumeration so adding a field forces every diff and
// merge path to handle it. The CBZ implementation rewrites ComicInfo.xml
// inside the archive through a temporary file that is renamed into place.
package comicinfo
