package finalize

import (
	"path/filepath"
	"strconv"
	"strings"
)

// FilePostfix names the outputs of a run after its study feature, T
// threshold, normalisation and selection criterion, e.g.
// "age.t2.nqa.length20" or "age.t3.fdr0.05".
func FilePostfix(study string, tThreshold float64, normalizeQA bool, lengthThreshold int, fdrThreshold float64) string {
	var b strings.Builder
	b.WriteString(study)
	b.WriteString(".t")
	b.WriteString(strconv.Itoa(int(tThreshold)))
	if normalizeQA {
		b.WriteString(".nqa")
	}
	if fdrThreshold == 0 {
		b.WriteString(".length")
		b.WriteString(strconv.Itoa(lengthThreshold))
	} else {
		value := strconv.FormatFloat(fdrThreshold, 'f', 6, 64)
		b.WriteString(".fdr")
		b.WriteString(value[:min(4, len(value))])
	}
	return b.String()
}

// OutputBase joins dir, the optional prefix and the postfix into the
// path every output file name is derived from.
func OutputBase(dir, prefix, postfix string) string {
	name := postfix
	if prefix != "" {
		name = prefix + "." + postfix
	}
	return filepath.Join(dir, name)
}
