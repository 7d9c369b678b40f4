package provenance

import "github.com/src-d/enry/v2"

// detectLanguage tags a path with its programming language. Content is used
// to disambiguate extensions shared by several languages; an empty result
// means enry could not classify the file.
func detectLanguage(path string, content []byte) string {
	return enry.GetLanguage(path, content)
}
