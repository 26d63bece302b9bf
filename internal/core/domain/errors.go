package domain

import (
	"errors"
	"fmt"
)

var (
	ErrContractNotFound = errors.New("contract not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrTemporary        = errors.New("temporary failure")

	ErrCacheMiss              = errors.New("analysis cache miss")
	ErrBridgeMisconfigured    = errors.New("language bridge misconfigured")
	ErrDetectionFailed        = errors.New("language detection failed")
	ErrRequiresUserAction     = errors.New("requires user action")
	ErrTranslationUnavailable = errors.New("translation unavailable")
	ErrSchemaViolation        = errors.New("schema violation")
	ErrMetadataUnavailable    = errors.New("metadata extraction failed")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ErrorKind is the stable code of an error kind for remote consumers.
type ErrorKind string

const (
	KindRequiresUserAction     ErrorKind = "requires_user_action"
	KindTranslationUnavailable ErrorKind = "translation_unavailable"
	KindMetadataUnavailable    ErrorKind = "metadata_unavailable"
	KindBridgeMisconfigured    ErrorKind = "bridge_misconfigured"
	KindContractNotFound       ErrorKind = "contract_not_found"
	KindInvalidInput           ErrorKind = "invalid_input"
	KindSchemaViolation        ErrorKind = "schema_violation"
	KindTemporary              ErrorKind = "temporary"
	KindInternal               ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrRequiresUserAction, KindRequiresUserAction},
	{ErrTranslationUnavailable, KindTranslationUnavailable},
	{ErrMetadataUnavailable, KindMetadataUnavailable},
	{ErrBridgeMisconfigured, KindBridgeMisconfigured},
	{ErrContractNotFound, KindContractNotFound},
	{ErrInvalidInput, KindInvalidInput},
	{ErrSchemaViolation, KindSchemaViolation},
	{ErrTemporary, KindTemporary},
}

// KindOf returns the first known kind in err's chain, KindInternal for
// unclassified errors and "" for nil.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	for _, k := range errorKinds {
		if IsKind(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// Retryable reports whether the same request may succeed when repeated,
// after the user acted or the provider recovered.
func (k ErrorKind) Retryable() bool {
	return k == KindRequiresUserAction || k == KindTemporary
}
