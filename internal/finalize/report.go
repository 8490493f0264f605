package finalize

import (
	"fmt"
	"strings"

	"gocnt/internal/statmodel"
)

// Report renders the methods paragraph describing a run.
func Report(m *statmodel.StatModel, opts Options, permutationCount int) string {
	var out strings.Builder
	out.WriteString("Diffusion MRI connectometry was used to derive the correlational tractography that has QA")
	if study := m.StudyFeature(); study != "" {
		fmt.Fprintf(&out, " correlated with %s.", study)
	} else {
		out.WriteString(".")
	}

	covariates := m.Covariates()
	if m.Nonparametric() {
		if len(covariates) == 0 {
			out.WriteString(" A nonparametric Spearman correlation was used to derive the correlation.")
		} else {
			fmt.Fprintf(&out, " A nonparametric Spearman partial correlation was used to derive the correlation, and the effect of %s was removed using a multiple regression model.",
				listItems(covariates))
		}
	} else {
		items := append(covariates, m.StudyFeature())
		fmt.Fprintf(&out, " A multiple regression model was used to consider the effect of %s.", listItems(items))
	}

	if sel := m.Selection(); sel != "" {
		fmt.Fprintf(&out, " Subjects were selected by %s.", sel)
	}
	fmt.Fprintf(&out, " A total of %d subjects were included in the analysis.", m.SubjectCount())

	p := statmodel.TTestPValue(opts.TThreshold, m.DegreesOfFreedom())
	fmt.Fprintf(&out, " A T-score threshold of %g (two-tailed p=%.3g) was assigned and tracked using a deterministic fiber tracking algorithm to obtain correlational tractography.",
		opts.TThreshold, p)

	if m.NormalizeQA() {
		out.WriteString(" The QA values were normalized.")
	}
	if opts.Tip > 0 {
		fmt.Fprintf(&out, " The tracks were filtered by topology-informed pruning with %d iteration(s).", opts.Tip)
	}
	if opts.FDRThreshold == 0 {
		fmt.Fprintf(&out, " A length threshold of %d voxel distance was used to select tracks.", opts.LengthThreshold)
	} else {
		fmt.Fprintf(&out, " An FDR threshold of %g was used to select tracks.", opts.FDRThreshold)
	}
	fmt.Fprintf(&out, " To estimate the false discovery rate, a total of %d randomized permutations were applied to the group label to obtain the null distribution of the track length.",
		permutationCount)
	return out.String()
}

// listItems joins names as "a", "a and b" or "a, b, and c".
func listItems(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + ", and " + items[len(items)-1]
}
