package usecase

import "errors"

var (
	ErrMissingKey     = errors.New("fragment has no usable identity key")
	ErrAmbiguousShape = errors.New("fragment is neither team nor individual shaped")
	ErrFetchFailure   = errors.New("classification fetch failed")
	ErrPartialScrape  = errors.New("scrape finished incomplete")
	ErrPersistence    = errors.New("snapshot persistence failed")
)
