package chunk

import (
	"regexp"
	"strings"
)

// Chunker splits document text into chunks. It is stateless and safe for
// concurrent use.
type Chunker struct {
	opts Options
}

// NewChunker creates a chunker, filling in defaults for zero-valued options.
func NewChunker(opts Options) *Chunker {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap <= 0 {
		opts.ChunkOverlap = DefaultChunkOverlap
	}
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	return &Chunker{opts: opts}
}

var (
	headerPattern = regexp.MustCompile(`^(#{1,6})\s+`)

	// A table separator row: pipes, dashes, colons and spaces with at
	// least one dash.
	tableSeparatorPattern = regexp.MustCompile(`^\s*\|?[\s:|-]*-[\s:|-]*\|?\s*$`)
)

// Chunk splits text into ordered chunks. Empty or whitespace-only text
// yields zero chunks. Chunk IDs and indexes are assigned in document order.
func (c *Chunker) Chunk(sourcePath, text string, mode Mode) []*Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var chunks []*Chunk
	if mode == ModeMarkdown {
		chunks = c.chunkMarkdown(text)
	} else {
		chunks = c.chunkGeneric(text)
	}

	for i, ch := range chunks {
		ch.Index = i
		ch.ID = ChunkID(sourcePath, i)
	}
	return chunks
}

// section is a contiguous run of lines with a single structural role.
type section struct {
	typ   SectionType
	level int
	start int // byte offset of the section's first line
	lines []string
}

func (s *section) text() string {
	return strings.TrimRight(strings.Join(s.lines, "\n"), "\n")
}

// chunkMarkdown scans line by line: code fences open and close code_block
// sections, header lines open header sections, everything else accumulates.
func (c *Chunker) chunkMarkdown(text string) []*Chunk {
	sections := parseSections(text)

	var chunks []*Chunk
	for _, sec := range sections {
		chunks = append(chunks, c.emitSection(sec)...)
	}
	return chunks
}

func parseSections(text string) []*section {
	lines := strings.Split(text, "\n")

	var sections []*section
	var cur *section
	inFence := false
	offset := 0

	flush := func() {
		if cur != nil && strings.TrimSpace(cur.text()) != "" {
			sections = append(sections, cur)
		}
		cur = nil
	}

	for _, line := range lines {
		lineStart := offset
		offset += len(line) + 1

		if inFence {
			cur.lines = append(cur.lines, line)
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inFence = false
				flush()
			}
			continue
		}

		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			flush()
			cur = &section{typ: SectionCodeBlock, start: lineStart, lines: []string{line}}
			inFence = true
			continue
		}

		if m := headerPattern.FindStringSubmatch(line); m != nil {
			flush()
			cur = &section{typ: SectionHeader, level: len(m[1]), start: lineStart, lines: []string{line}}
			continue
		}

		if cur == nil {
			cur = &section{typ: SectionText, start: lineStart}
		}
		cur.lines = append(cur.lines, line)
	}

	// A fence unterminated at EOF still emits its section.
	flush()

	return sections
}

// emitSection converts one section into chunks. Code blocks are atomic.
// Sections within the size budget emit one chunk; oversized sections are
// split sentence-aware, with contained tables split row-wise instead.
func (c *Chunker) emitSection(sec *section) []*Chunk {
	text := sec.text()

	if sec.typ == SectionCodeBlock {
		return []*Chunk{{
			Text:        text,
			SectionType: SectionCodeBlock,
			StartChar:   sec.start,
			EndChar:     sec.start + len(text),
		}}
	}

	if countWords(text) <= c.opts.ChunkSize {
		return []*Chunk{{
			Text:         text,
			SectionType:  sec.typ,
			SectionLevel: sec.level,
			StartChar:    sec.start,
			EndChar:      sec.start + len(text),
		}}
	}

	return c.splitOversized(sec)
}

// splitOversized splits a section that exceeds the chunk size. Table blocks
// inside the section are split row-wise with the header and separator rows
// prepended to every piece; the surrounding text is split sentence-aware.
func (c *Chunker) splitOversized(sec *section) []*Chunk {
	segments := segmentLines(sec.lines)

	var chunks []*Chunk
	lineOffsets := lineStartOffsets(sec.lines, sec.start)

	for _, seg := range segments {
		segText := strings.TrimRight(strings.Join(sec.lines[seg.startLine:seg.endLine], "\n"), "\n")
		if strings.TrimSpace(segText) == "" {
			continue
		}
		segStart := lineOffsets[seg.startLine]

		if seg.table {
			chunks = append(chunks, c.splitTable(sec.lines[seg.startLine:seg.endLine], lineOffsets[seg.startLine:seg.endLine])...)
			continue
		}

		if countWords(segText) <= c.opts.ChunkSize {
			chunks = append(chunks, &Chunk{
				Text:         segText,
				SectionType:  sec.typ,
				SectionLevel: sec.level,
				StartChar:    segStart,
				EndChar:      segStart + len(segText),
			})
			continue
		}

		chunks = append(chunks, c.splitBySentences(segText, segStart, sec.typ, sec.level)...)
	}

	return chunks
}

// segment is a run of lines within a section that is either one table block
// or plain content.
type segment struct {
	table     bool
	startLine int
	endLine   int // exclusive
}

// segmentLines partitions lines into table blocks and non-table runs. A
// table block is a pipe row immediately followed by a separator row, plus
// every following pipe row.
func segmentLines(lines []string) []segment {
	var segments []segment
	i := 0
	runStart := 0

	isPipeRow := func(s string) bool {
		t := strings.TrimSpace(s)
		return strings.HasPrefix(t, "|") && strings.Count(t, "|") >= 2
	}

	for i < len(lines) {
		if isPipeRow(lines[i]) && i+1 < len(lines) &&
			isPipeRow(lines[i+1]) && tableSeparatorPattern.MatchString(lines[i+1]) {
			if runStart < i {
				segments = append(segments, segment{startLine: runStart, endLine: i})
			}
			end := i + 2
			for end < len(lines) && isPipeRow(lines[end]) {
				end++
			}
			segments = append(segments, segment{table: true, startLine: i, endLine: end})
			i = end
			runStart = end
			continue
		}
		i++
	}
	if runStart < len(lines) {
		segments = append(segments, segment{startLine: runStart, endLine: len(lines)})
	}

	return segments
}

// splitTable groups table data rows into chunks, prepending the original
// header and separator rows to each so every piece reads as a valid table.
func (c *Chunker) splitTable(lines []string, offsets []int) []*Chunk {
	header := lines[0]
	separator := lines[1]
	rows := lines[2:]
	rowOffsets := offsets[2:]
	prefixWords := countWords(header) + countWords(separator)

	var chunks []*Chunk
	var cur []string
	curStart := 0
	words := prefixWords

	flush := func() {
		if len(cur) == 0 {
			return
		}
		body := strings.Join(cur, "\n")
		chunks = append(chunks, &Chunk{
			Text:        header + "\n" + separator + "\n" + body,
			SectionType: SectionTableChunk,
			StartChar:   curStart,
			EndChar:     curStart + len(body),
		})
		cur = nil
		words = prefixWords
	}

	for i, row := range rows {
		w := countWords(row)
		if len(cur) > 0 && words+w > c.opts.ChunkSize {
			flush()
		}
		if len(cur) == 0 {
			curStart = rowOffsets[i]
		}
		cur = append(cur, row)
		words += w
	}
	flush()

	if len(chunks) == 0 {
		// Header-only table
		text := header + "\n" + separator
		chunks = append(chunks, &Chunk{
			Text:        text,
			SectionType: SectionTableChunk,
			StartChar:   offsets[0],
			EndChar:     offsets[0] + len(text),
		})
	}

	return chunks
}

// lineStartOffsets returns the byte offset of each line, given the offset
// of the first line.
func lineStartOffsets(lines []string, base int) []int {
	offsets := make([]int, len(lines))
	offset := base
	for i, line := range lines {
		offsets[i] = offset
		offset += len(line) + 1
	}
	return offsets
}

// chunkGeneric packs blank-line paragraphs greedily up to the chunk size,
// carrying the last one or two paragraphs into the next chunk as overlap.
func (c *Chunker) chunkGeneric(text string) []*Chunk {
	paras := splitParagraphs(text)

	var chunks []*Chunk
	var cur []span
	words := 0

	emit := func() {
		if len(cur) == 0 {
			return
		}
		chunks = append(chunks, chunkFromSpans(text, cur, 0, SectionText, 0))
	}

	for _, p := range paras {
		w := countWords(p.text)
		if words > 0 && words+w > c.opts.ChunkSize {
			emit()

			// Overlap carry: the last paragraph, plus the one before it
			// when the last alone is under the overlap budget.
			carry := 1
			if len(cur) >= 2 && countWords(cur[len(cur)-1].text) < c.opts.ChunkOverlap {
				carry = 2
			}
			cur = append([]span(nil), cur[len(cur)-carry:]...)
			words = 0
			for _, s := range cur {
				words += countWords(s.text)
			}
		}
		cur = append(cur, p)
		words += w
	}

	if len(cur) > 0 {
		last := chunkFromSpans(text, cur, 0, SectionText, 0)
		if len(chunks) == 0 || countWords(last.Text) >= c.opts.MinChunkSize {
			chunks = append(chunks, last)
		}
	}

	return chunks
}

// splitBySentences splits oversized text greedily by sentence up to the
// chunk size, carrying roughly overlap/10 trailing sentences forward.
// Trailing chunks under the minimum size are dropped.
func (c *Chunker) splitBySentences(text string, base int, typ SectionType, level int) []*Chunk {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	carry := c.opts.ChunkOverlap / 10
	if carry < 1 {
		carry = 1
	}

	var chunks []*Chunk
	var cur []span
	words := 0

	for _, s := range sentences {
		w := countWords(s.text)
		if words > 0 && words+w > c.opts.ChunkSize {
			chunks = append(chunks, chunkFromSpans(text, cur, base, typ, level))

			keep := len(cur) - carry
			if keep < 0 {
				keep = 0
			}
			cur = append([]span(nil), cur[keep:]...)
			words = 0
			for _, k := range cur {
				words += countWords(k.text)
			}
		}
		cur = append(cur, s)
		words += w
	}

	if len(cur) > 0 {
		last := chunkFromSpans(text, cur, base, typ, level)
		if len(chunks) == 0 || countWords(last.Text) >= c.opts.MinChunkSize {
			chunks = append(chunks, last)
		}
	}

	return chunks
}

// span is a substring of the section text with its byte offsets.
type span struct {
	text  string
	start int
	end   int
}

// chunkFromSpans builds a chunk covering contiguous spans, slicing the
// original text so internal whitespace is preserved.
func chunkFromSpans(text string, spans []span, base int, typ SectionType, level int) *Chunk {
	start := spans[0].start
	end := spans[len(spans)-1].end
	return &Chunk{
		Text:         text[start:end],
		SectionType:  typ,
		SectionLevel: level,
		StartChar:    base + start,
		EndChar:      base + end,
	}
}

// splitSentences splits text into sentence spans. A sentence ends at '.',
// '!' or '?' followed by whitespace or end of text. Text without
// terminators is one span.
func splitSentences(text string) []span {
	var spans []span
	start := -1

	runes := []byte(text)
	for i := 0; i < len(runes); i++ {
		ch := runes[i]
		if start == -1 {
			if !isSpace(ch) {
				start = i
			}
			continue
		}
		if ch == '.' || ch == '!' || ch == '?' {
			if i+1 >= len(runes) || isSpace(runes[i+1]) {
				spans = append(spans, span{text: text[start : i+1], start: start, end: i + 1})
				start = -1
			}
		}
	}
	if start != -1 {
		end := len(text)
		for end > start && isSpace(text[end-1]) {
			end--
		}
		spans = append(spans, span{text: text[start:end], start: start, end: end})
	}

	return spans
}

var paragraphSplitPattern = regexp.MustCompile(`\n[ \t]*\n+`)

// splitParagraphs splits text into paragraph spans on blank lines.
func splitParagraphs(text string) []span {
	var spans []span
	seps := paragraphSplitPattern.FindAllStringIndex(text, -1)

	prev := 0
	boundaries := make([][2]int, 0, len(seps)+1)
	for _, sep := range seps {
		boundaries = append(boundaries, [2]int{prev, sep[0]})
		prev = sep[1]
	}
	boundaries = append(boundaries, [2]int{prev, len(text)})

	for _, b := range boundaries {
		start, end := b[0], b[1]
		for start < end && isSpace(text[start]) {
			start++
		}
		for end > start && isSpace(text[end-1]) {
			end--
		}
		if start < end {
			spans = append(spans, span{text: text[start:end], start: start, end: end})
		}
	}

	return spans
}

func countWords(s string) int {
	return len(strings.Fields(s))
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
