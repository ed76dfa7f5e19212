package usecase

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/blastxplorer/blastxplorer/internal/domain"
	"github.com/blastxplorer/blastxplorer/internal/fasta"
	"github.com/blastxplorer/blastxplorer/internal/repository"
)

// Dataset name and format registered on the execution server for every
// uploaded query.
const (
	uploadFileName = "blastinput.fasta"
	uploadFileType = "fasta"
)

// xmlOutputFormat is the execution server's format code for BLAST XML.
const xmlOutputFormat = "5"

// blastPrograms maps each accepted program to the execution server's tool
// id for it. The two names coincide today; the table keeps the mapping
// explicit and rejects anything outside it.
var blastPrograms = map[string]string{
	"blastn":  "blastn",
	"blastp":  "blastp",
	"blastx":  "blastx",
	"tblastn": "tblastn",
	"tblastx": "tblastx",
}

// DelegatedBackend hands a search to the remote execution server and
// returns once submission is acknowledged; the poll cycle completes the run
// later. Subject names on this path always go through the label normalizer.
type DelegatedBackend struct {
	repo        repository.RunRepository
	client      ExecutionClient
	historyName string
	logger      *zap.Logger
}

// NewDelegatedBackend creates the remote execution backend. historyName is
// the name given to every execution context it opens.
func NewDelegatedBackend(repo repository.RunRepository, client ExecutionClient, historyName string, logger *zap.Logger) *DelegatedBackend {
	return &DelegatedBackend{
		repo:        repo,
		client:      client,
		historyName: historyName,
		logger:      logger,
	}
}

var _ SearchBackend = (*DelegatedBackend)(nil)

func (b *DelegatedBackend) Run(ctx context.Context, run *domain.BlastRun, query string) error {
	queryID, querySeq, err := fasta.ParseSingle(strings.NewReader(query))
	if err != nil {
		return err
	}
	run.QueryID = queryID
	run.QuerySeq = querySeq

	historyID, err := b.client.CreateHistory(ctx, b.historyName)
	if err != nil {
		return err
	}
	// Recorded immediately so the retention sweep can purge the remote
	// context even when submission fails below.
	run.HistoryID = historyID
	if err := b.repo.Update(ctx, run); err != nil {
		return err
	}

	path, cleanup, err := writeTempQuery(query)
	if err != nil {
		return err
	}
	defer cleanup()

	// The upload ships whatever reached the disk, so the file itself gets
	// validated once more before it leaves.
	if err := revalidateQueryFile(path); err != nil {
		return err
	}

	toolID, ok := blastPrograms[run.Program]
	if !ok {
		return &domain.UnsupportedProgramError{Program: run.Program}
	}

	fileID, err := b.client.UploadFile(ctx, historyID, path, uploadFileName, uploadFileType)
	if err != nil {
		return err
	}

	inputs := map[string]any{
		"query":             map[string]any{"src": "hda", "id": fileID},
		"db_opts|database":  run.DBName,
		"blast_type":        run.Program,
		"evalue_cutoff":     run.EValue,
		"output|out_format": xmlOutputFormat,
	}
	outputID, err := b.client.RunTool(ctx, historyID, toolID, inputs)
	if err != nil {
		return err
	}

	run.HistoryFileID = outputID
	run.Status = domain.StatusPending

	b.logger.Info("Search delegated",
		zap.String("run_id", run.ID.String()),
		zap.String("history_id", historyID),
		zap.String("output_id", outputID),
	)
	return nil
}

func writeTempQuery(query string) (string, func(), error) {
	f, err := os.CreateTemp("", "blastinput-*.fasta")
	if err != nil {
		return "", nil, fmt.Errorf("usecase: create temp query file: %w", err)
	}
	if _, err := f.WriteString(query); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("usecase: write temp query file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("usecase: close temp query file: %w", err)
	}
	return f.Name(), func() { os.Remove(f.Name()) }, nil
}

func revalidateQueryFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return domain.ErrBadFastaFile
	}
	defer f.Close()
	if _, _, err := fasta.ParseSingle(f); err != nil {
		return domain.ErrBadFastaFile
	}
	return nil
}
