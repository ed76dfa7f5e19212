package usecase

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/blastxml"
	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/msa"
	"github.com/blastxplorer/blastxplorer/internal/phylo"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// resultFinalizer turns a raw result stream into persisted subjects and a
// tree on the run. Both backends share it; they differ only in how a hit
// title becomes a subject name.
type resultFinalizer struct {
	repo            repository.RunRepository
	normalizeTitles bool
	logger          *zap.Logger
}

func newResultFinalizer(repo repository.RunRepository, normalizeTitles bool, logger *zap.Logger) *resultFinalizer {
	return &resultFinalizer{repo: repo, normalizeTitles: normalizeTitles, logger: logger}
}

// finalize consumes the result stream, keeps the pairs that pass the run's
// thresholds, persists them as subjects and finishes the run with a freshly
// built tree. The run's message field is left untouched.
func (f *resultFinalizer) finalize(ctx context.Context, run *domain.BlastRun, results io.Reader) error {
	collected := msa.New(run.QueryID, run.QuerySeq)

	r := blastxml.NewReader(results)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}

		queryLen := rec.QueryLen
		if queryLen == 0 {
			queryLen = len(run.QuerySeq)
		}
		for _, hit := range rec.Hits {
			name := f.subjectName(hit.Title())
			for _, hsp := range hit.HSPs {
				if !msa.Retain(hsp.Expect, hsp.AlignLen, queryLen, run.EValue, run.Coverage) {
					continue
				}
				collected.AddHSP(name, hsp.QueryFrom, hsp.QuerySeq, hsp.SubjectSeq)
			}
		}
	}

	if collected.Len() > 0 {
		subjects := make([]domain.BlastSubject, 0, collected.Len())
		for _, s := range collected.Sequences() {
			subjects = append(subjects, domain.BlastSubject{
				RunID:    run.ID,
				Name:     s.Name,
				Sequence: s.Seq,
			})
		}
		if err := f.repo.AddSubjects(ctx, run.ID, subjects); err != nil {
			return err
		}
	}

	tree, err := buildTree(collected.AllSequences())
	if err != nil {
		return err
	}

	run.Tree = tree
	run.Status = domain.StatusFinished

	f.logger.Info("Run finalized",
		zap.String("run_id", run.ID.String()),
		zap.Int("subjects", collected.Len()),
	)
	return nil
}

func (f *resultFinalizer) subjectName(title string) string {
	if f.normalizeTitles {
		return phylo.CleanLabel(title)
	}
	if fields := strings.Fields(title); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// buildTree adapts a collected sequence set to the tree builder's
// parallel-slice contract.
func buildTree(seqs []msa.Sequence) (string, error) {
	names := make([]string, len(seqs))
	rows := make([]string, len(seqs))
	for i, s := range seqs {
		names[i] = s.Name
		rows[i] = s.Seq
	}
	return phylo.Build(names, rows)
}
