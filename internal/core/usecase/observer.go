package usecase

import (
	"time"

	"github.com/kirillkom/contract-analyzer/internal/core/domain"
)

type noopObserver struct{}

func (noopObserver) RunFinished(domain.RunOutcome, time.Duration) {}
func (noopObserver) SectionFinished(domain.SectionName, string)   {}
func (noopObserver) SectionRetried(domain.SectionName)            {}
func (noopObserver) CacheOperation(string, string)                {}
