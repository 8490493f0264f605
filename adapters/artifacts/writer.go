// Package artifacts writes finalized analysis outputs to the file system.
package artifacts

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gocnt/adapters/excel"
	"gocnt/adapters/npy"
	"gocnt/adapters/tractfile"
	"gocnt/domain/stats"
	"gocnt/domain/tract"
	"gocnt/internal/errors"
	"gocnt/ports"
)

// File name suffixes appended to the output base.
const (
	DistributionSuffix = ".fdr_dist.values.txt"
	WorkbookSuffix     = ".fdr_dist.xlsx"
	NoTractSuffix      = ".no_tract.txt"
	StatisticsSuffix   = ".t_statistics.npy"
)

// FileWriter implements ports.ArtifactWriter on local files.
type FileWriter struct {
	workbook bool
}

var _ ports.ArtifactWriter = (*FileWriter)(nil)

// NewFileWriter creates a writer. With workbook the distribution table is
// also saved as an Excel workbook.
func NewFileWriter(workbook bool) *FileWriter {
	return &FileWriter{workbook: workbook}
}

// WriteDistribution writes the tab-separated distribution table.
func (w *FileWriter) WriteDistribution(ctx context.Context, base string, d *stats.Distribution, minLength int) ([]string, error) {
	if err := prepare(ctx, base); err != nil {
		return nil, err
	}
	path := base + DistributionSuffix
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.IOError(path, err)
	}
	fail := func(err error) ([]string, error) {
		f.Close()
		os.Remove(path)
		return nil, errors.IOError(path, err)
	}
	bw := bufio.NewWriter(f)
	fmt.Fprintln(bw, strings.Join(excel.DistributionHeaders, "\t"))
	for length := max(minLength, 0); length < d.Size(); length++ {
		fmt.Fprintf(bw, "%d\t%s\t%s\t%d\t%d\t%d\t%d\n",
			length,
			formatFDR(d.FDR[stats.Positive][length]),
			formatFDR(d.FDR[stats.Negative][length]),
			d.Null[stats.Positive][length],
			d.Null[stats.Negative][length],
			d.Real[stats.Positive][length],
			d.Real[stats.Negative][length])
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, errors.IOError(path, err)
	}

	files := []string{path}
	if w.workbook {
		book := base + WorkbookSuffix
		if err := excel.WriteDistribution(book, d, minLength); err != nil {
			os.Remove(book)
			return files, errors.IOError(book, err)
		}
		files = append(files, book)
	}
	return files, nil
}

// WriteTracts writes set, or an empty marker file when set is empty.
func (w *FileWriter) WriteTracts(ctx context.Context, base string, c stats.Correlation, set tract.Set) (string, error) {
	if err := prepare(ctx, base); err != nil {
		return "", err
	}
	name := base + "." + c.String()
	if len(set) == 0 {
		path := name + NoTractSuffix
		if err := os.WriteFile(path, nil, 0o644); err != nil {
			return "", errors.IOError(path, err)
		}
		return path, nil
	}
	path := name + tractfile.Extension
	if err := tractfile.WriteFile(path, set); err != nil {
		os.Remove(path)
		return "", errors.IOError(path, err)
	}
	return path, nil
}

// WriteStatistics writes a [2, fibers, voxels] array, positive first.
func (w *FileWriter) WriteStatistics(ctx context.Context, base string, pos, neg [][]float32) (string, error) {
	if err := prepare(ctx, base); err != nil {
		return "", err
	}
	if len(pos) != len(neg) {
		return "", fmt.Errorf("statistics: %d positive and %d negative fiber orders", len(pos), len(neg))
	}
	fibers, voxels := len(pos), 0
	if fibers > 0 {
		voxels = len(pos[0])
	}
	data := make([]float32, 0, 2*fibers*voxels)
	for _, channel := range [][][]float32{pos, neg} {
		for _, field := range channel {
			if len(field) != voxels {
				return "", fmt.Errorf("statistics: ragged field of %d voxels, expected %d", len(field), voxels)
			}
			data = append(data, field...)
		}
	}
	path := base + StatisticsSuffix
	if err := npy.WriteFloat32(path, []int{2, fibers, voxels}, data); err != nil {
		os.Remove(path)
		return "", errors.IOError(path, err)
	}
	return path, nil
}

// Remove deletes paths, ignoring those already gone. The first failure is
// returned after every path has been tried.
func (w *FileWriter) Remove(paths []string) error {
	var first error
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) && first == nil {
			first = errors.IOError(path, err)
		}
	}
	return first
}

func prepare(ctx context.Context, base string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.IOError(dir, err)
		}
	}
	return nil
}

func formatFDR(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
