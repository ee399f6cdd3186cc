package tagging

import (
	"errors"

	"github.com/poiesic/tagger/ai"
)

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrVerdictUnparseable indicates the judge response could not be turned into a verdict.
	ErrVerdictUnparseable = errors.New("judge verdict unparseable")

	// ErrTemplateSlotMissing indicates a template does not substitute the record name.
	ErrTemplateSlotMissing = ai.ErrTemplateSlotMissing

	// ErrCatalogRequired is returned when a runner is built without a catalog.
	ErrCatalogRequired = errors.New("catalog repository is required")

	// ErrTagStoreRequired is returned when a runner is built without a tag store.
	ErrTagStoreRequired = errors.New("tag repository is required")

	// ErrGeneratorRequired is returned when no generation service is supplied.
	ErrGeneratorRequired = errors.New("generator is required")

	// ErrJudgeRequired is returned when tuning mode is requested without a judge.
	ErrJudgeRequired = errors.New("judge is required in tuning mode")

	// ErrInvalidConfig indicates a tagging Config failed validation.
	ErrInvalidConfig = errors.New("invalid tagging config")
)
