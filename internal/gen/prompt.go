package gen

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const systemInstruction = `You are a technical documentation assistant. Answer the question using only the context documents below. Cite the documents supporting each statement with [Doc N] markers. If the context does not contain the answer, say so plainly. Do not use outside knowledge.`

// BuildPrompt assembles the numbered context blocks and the question.
func BuildPrompt(query string, docs []*ContextDoc) string {
	blocks := make([]string, len(docs))
	for i, doc := range docs {
		blocks[i] = fmt.Sprintf("[Doc %d] Source: %s\nType: %s\nContent:\n%s",
			doc.Index, doc.Source, doc.Type, doc.Text)
	}

	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\nContext documents:\n\n")
	b.WriteString(strings.Join(blocks, "\n\n---\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

var citationPattern = regexp.MustCompile(`\[Doc (\d+)\]`)

// ExtractCitations collects the unique [Doc N] references in the answer,
// in order of first appearance, resolved against the packed documents.
// References outside 1..len(docs) are dropped.
func ExtractCitations(answer string, docs []*ContextDoc) []Citation {
	matches := citationPattern.FindAllStringSubmatch(answer, -1)
	seen := make(map[int]struct{}, len(matches))
	citations := make([]Citation, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(docs) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		doc := docs[n-1]
		citations = append(citations, Citation{
			DocIndex:   n,
			SourcePath: doc.Source,
			DocumentID: doc.ID,
			Type:       doc.Type,
			SourceType: doc.SourceType,
			Score:      doc.Score,
		})
	}
	return citations
}
