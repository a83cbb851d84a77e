// Package importer turns bank statement and obligation CSV exports into
// records ready for the store.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/cleared-dev/cashflow/internal/accounts"
	"github.com/cleared-dev/cashflow/internal/clock"
	"github.com/cleared-dev/cashflow/internal/id"
	"github.com/cleared-dev/cashflow/internal/model"
)

// Line is one parsed statement row before it is bound to an account.
type Line struct {
	Date            time.Time
	Description     string
	Amount          decimal.Decimal
	Kind            string
	SourceCategory  string
	AccountingClass string
	Reference       string
}

// RowError is a statement row that could not be parsed. Rows are numbered
// as in the file, header included.
type RowError struct {
	Row int
	Err error
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Row, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

// Parser converts a bank CSV export into statement lines. Bad rows are
// reported and skipped; the error is reserved for unreadable input.
type Parser interface {
	Parse(r io.Reader) ([]Line, []RowError, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&GenericParser{})
	r.Register(&ChaseParser{})
	return r
}

// DefaultFormat is used when no format is given.
const DefaultFormat = "generic"

// Batch is the result of importing one statement.
type Batch struct {
	ID      string
	File    string
	Format  string
	Account model.Account
	Records []model.TransactionRecord
	Errors  []RowError
}

// Importer binds parsed statement lines to configured accounts.
type Importer struct {
	registry *Registry
	accounts *accounts.Service
	clock    clock.Clock
	logger   *zap.Logger
}

// New creates an Importer. Nil collaborators get defaults.
func New(reg *Registry, dir *accounts.Service, clk clock.Clock, logger *zap.Logger) *Importer {
	if reg == nil {
		reg = DefaultRegistry()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{registry: reg, accounts: dir, clock: clk, logger: logger}
}

// Read parses a statement for account. The account is resolved against the
// configuration once, here; an unrecognised name keeps the role unknown so
// classification flags its records for review.
func (im *Importer) Read(r io.Reader, format, account string) (Batch, error) {
	if format == "" {
		format = DefaultFormat
	}
	p := im.registry.Get(format)
	if p == nil {
		return Batch{}, fmt.Errorf("unknown statement format %q", format)
	}
	if strings.TrimSpace(account) == "" {
		return Batch{}, fmt.Errorf("account name is required")
	}

	lines, rowErrs, err := p.Parse(r)
	if err != nil {
		return Batch{}, err
	}

	acct, ok := im.accounts.Resolve(account)
	if !ok {
		acct = model.Account{Name: strings.TrimSpace(account), Role: model.RoleUnknown, Type: model.AccountTypeChecking}
		im.logger.Warn("statement account not configured", zap.String("account", acct.Name))
	}

	b := Batch{
		ID:      id.NewBatchID(im.clock.Now()),
		Format:  p.Format(),
		Account: acct,
		Records: make([]model.TransactionRecord, 0, len(lines)),
		Errors:  rowErrs,
	}
	for _, l := range lines {
		b.Records = append(b.Records, model.TransactionRecord{
			ID:              id.NewRecordID(),
			AccountName:     acct.Name,
			AccountRole:     acct.Role,
			AccountType:     acct.Type,
			Date:            l.Date,
			Description:     l.Description,
			Amount:          l.Amount,
			Kind:            l.Kind,
			SourceCategory:  l.SourceCategory,
			AccountingClass: l.AccountingClass,
			Reference:       l.Reference,
			ImportBatchID:   b.ID,
		})
	}
	return b, nil
}

// ReadFile parses the statement at path. An empty account is resolved from
// the file name without its extension.
func (im *Importer) ReadFile(path, format, account string) (Batch, error) {
	f, err := os.Open(path)
	if err != nil {
		return Batch{}, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	if account == "" {
		account = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	b, err := im.Read(f, format, account)
	if err != nil {
		return Batch{}, fmt.Errorf("importing %s: %w", filepath.Base(path), err)
	}
	b.File = filepath.Base(path)
	im.logger.Info("statement parsed",
		zap.String("file", b.File),
		zap.String("account", b.Account.Name),
		zap.String("batch_id", b.ID),
		zap.Int("records", len(b.Records)),
		zap.Int("row_errors", len(b.Errors)),
	)
	return b, nil
}

// importDir is the subdirectory for import CSVs.
const importDir = "import"

// processedDir is the subdirectory for processed CSVs.
const processedDir = "import/processed"

// Scan returns CSV files in <root>/import/.
func Scan(root string) ([]FileInfo, error) {
	dir := filepath.Join(root, importDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves a file from import/ to import/processed/.
func MarkProcessed(root, fileName string) error {
	src := filepath.Join(root, importDir, fileName)
	dstDir := filepath.Join(root, processedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}
