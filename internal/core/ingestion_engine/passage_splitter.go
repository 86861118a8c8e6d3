package ingestion_engine

import (
	"strings"
)

// pageLine is one non-empty line of extracted text with the page range it came from.
type pageLine struct {
	text       string
	start, end int
	tokens     int
}

// splitPassages groups the lines of successful ranges into token-bounded passages with optional overlap.
//
// results:        run results in page order; failed and blank ranges are skipped.
// targetTokens:   approximate tokens per passage.
// overlapTokens:  tokens to retain from the end of the previous passage as seed of the next (e.g., 50).
func splitPassages(results []ChunkResult, targetTokens, overlapTokens int) []passage {
	if targetTokens <= 0 {
		return nil
	}

	var (
		out    []passage
		buf    []pageLine
		tokSum int
		fresh  int // lines in buf not yet emitted
	)

	// flush emits the current buffer as a passage and keeps a tail of about overlapTokens.
	flush := func() {
		if fresh == 0 {
			return
		}
		texts := make([]string, len(buf))
		for j, l := range buf {
			texts[j] = l.text
		}
		out = append(out, passage{
			Pos:       len(out),
			StartPage: buf[0].start,
			EndPage:   buf[len(buf)-1].end,
			Text:      strings.Join(texts, "\n"),
			TokenCnt:  tokSum,
		})

		var keep []pageLine
		if overlapTokens > 0 {
			remain := overlapTokens
			for j := len(buf) - 1; j >= 0 && remain > 0; j-- {
				keep = append([]pageLine{buf[j]}, keep...)
				remain -= buf[j].tokens
			}
		}
		buf, tokSum, fresh = keep, 0, 0
		for _, l := range buf {
			tokSum += l.tokens
		}
		// A tail as large as a passage would be re-emitted forever.
		if tokSum >= targetTokens {
			buf, tokSum = nil, 0
		}
	}

	for _, res := range results {
		if !res.OK() || res.Blank() {
			continue
		}
		for _, line := range strings.Split(res.Text, "\n") {
			if line = strings.TrimSpace(line); line == "" {
				continue
			}
			l := pageLine{text: line, start: res.Start, end: res.End, tokens: approxTokens(line)}
			buf = append(buf, l)
			tokSum += l.tokens
			fresh++

			if tokSum >= targetTokens {
				flush()
			}
		}
	}
	flush()
	return out
}

// approxTokens is a cheap token estimator (~4 chars ≈ 1 token).
func approxTokens(s string) int {
	n := len([]rune(s))
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}
