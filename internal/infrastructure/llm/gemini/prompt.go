package gemini

import (
	"fmt"
	"path/filepath"
	"strings"
)

const contentLimit = 4000

func buildNamePrompt(text, originalName string) string {
	ext := filepath.Ext(originalName)
	return fmt.Sprintf(`Suggest a short descriptive filename for the document below.
Respond with the filename only, without the extension, using latin letters,
digits and underscores. Current name: %s

Document content:
%s`, strings.TrimSuffix(originalName, ext), clip(text, contentLimit))
}

func buildSummaryPrompt(text string) string {
	return fmt.Sprintf(`Write a concise summary of the document below in two or
three sentences. Respond with the summary only.

Document content:
%s`, clip(text, contentLimit))
}

func buildTagsPrompt(text, filename string) string {
	return fmt.Sprintf(`Assign between three and five category tags to the document
below. Respond with a JSON array only, each element of the form
{"tag": "name", "confidence": 0.0}. Tags are single lowercase words.
Filename: %s

Document content:
%s`, filename, clip(text, contentLimit))
}
