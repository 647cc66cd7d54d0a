package ollama

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Local models handle shorter prompts better than the hosted provider,
// so the content window is tighter here.
const contentLimit = 2000

func buildNamePrompt(text, originalName string) string {
	ext := filepath.Ext(originalName)
	return fmt.Sprintf(`Suggest a short descriptive filename for this document.
Answer with the filename only, no extension, latin letters and underscores.
Current name: %s

Content:
%s`, strings.TrimSuffix(originalName, ext), clip(text, contentLimit))
}

func buildSummaryPrompt(text string) string {
	return fmt.Sprintf(`Summarize this document in two sentences. Answer with
the summary only.

Content:
%s`, clip(text, contentLimit))
}

func buildTagsPrompt(text, filename string) string {
	return fmt.Sprintf(`Assign 3 to 5 category tags to this document. Answer
with a JSON array only, elements like {"tag": "name", "confidence": 0.0}.
Filename: %s

Content:
%s`, filename, clip(text, contentLimit))
}
