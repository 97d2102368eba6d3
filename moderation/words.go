package moderation

import (
	"bufio"
	"embed"
	"strings"
)

//go:embed words/*.txt
var wordFiles embed.FS

// DefaultWords loads the embedded word lists, one word per line, with
// blank lines and #-comments skipped.
func DefaultWords() ([]string, error) {
	entries, err := wordFiles.ReadDir("words")
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var words []string
	for _, entry := range entries {
		file, err := wordFiles.Open("words/" + entry.Name())
		if err != nil {
			return nil, err
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			words = append(words, word)
		}
		err = scanner.Err()
		_ = file.Close()
		if err != nil {
			return nil, err
		}
	}
	return words, nil
}
