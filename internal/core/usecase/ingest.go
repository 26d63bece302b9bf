package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
	"github.com/kirillkom/contract-analyzer/internal/core/ports"
)

const (
	defaultMaxUploadBytes = 20 << 20
	contractTextKey       = "contract.txt"
)

var contractIDPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// IngestContractUseCase stores uploaded contracts and their extracted text.
// Contracts are addressed by the hash of their text.
type IngestContractUseCase struct {
	storage   ports.ObjectStorage
	extractor ports.TextExtractor
	detector  ports.LanguageDetector
	maxBytes  int64
	now       func() time.Time
}

func NewIngestContractUseCase(
	storage ports.ObjectStorage,
	extractor ports.TextExtractor,
	detector ports.LanguageDetector,
	maxBytes int64,
) *IngestContractUseCase {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &IngestContractUseCase{
		storage:   storage,
		extractor: extractor,
		detector:  detector,
		maxBytes:  maxBytes,
		now:       time.Now,
	}
}

func (uc *IngestContractUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.ContractInfo, error) {
	raw, err := io.ReadAll(io.LimitReader(body, uc.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(raw)) > uc.maxBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload contract", fmt.Errorf("file exceeds %d bytes", uc.maxBytes))
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload contract", errors.New("file is empty"))
	}

	text, err := uc.extractor.Extract(ctx, filename, mimeType, raw)
	if err != nil {
		return nil, fmt.Errorf("extract contract text: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload contract", errors.New("no text could be extracted"))
	}

	id := domain.ContractIDFromText(text)
	if err := uc.storage.Save(ctx, sourceKey(id, filename), bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("save contract source: %w", err)
	}
	if err := uc.storage.Save(ctx, textKey(id), strings.NewReader(text)); err != nil {
		return nil, fmt.Errorf("save contract text: %w", err)
	}

	info := &domain.ContractInfo{
		ID:         id,
		Filename:   filename,
		MimeType:   mimeType,
		Characters: utf8.RuneCountInString(text),
		CreatedAt:  uc.now().UTC(),
	}
	if uc.detector != nil {
		lang, err := uc.detector.Detect(ctx, text)
		if err != nil {
			slog.Warn("language_detection_failed", "contract_id", id, "error", err)
		} else {
			info.Language = domain.NormalizeLanguage(lang)
		}
	}

	slog.Info("contract_ingested", "contract_id", id, "filename", filename, "language", info.Language, "characters", info.Characters)
	return info, nil
}

func (uc *IngestContractUseCase) Load(ctx context.Context, contractID string) (domain.Contract, error) {
	if !contractIDPattern.MatchString(contractID) {
		return domain.Contract{}, domain.WrapError(domain.ErrInvalidInput, "load contract", fmt.Errorf("malformed contract id %q", contractID))
	}
	rc, err := uc.storage.Open(ctx, textKey(contractID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Contract{}, domain.WrapError(domain.ErrContractNotFound, "load contract", err)
		}
		return domain.Contract{}, fmt.Errorf("open contract text: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return domain.Contract{}, fmt.Errorf("read contract text: %w", err)
	}
	return domain.Contract{ID: contractID, Text: string(raw)}, nil
}

func textKey(id string) string {
	return id + "/" + contractTextKey
}

func sourceKey(id, filename string) string {
	return id + "/source_" + sanitizeFilename(filename)
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "contract.bin"
	}
	return base
}
