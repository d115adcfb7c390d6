package catalog

import "errors"

var (
	// ErrInvalidProgramID is returned when a program key cannot be represented.
	ErrInvalidProgramID = errors.New("catalog: invalid program id")
	// ErrEmptyProgramID is returned when a program row has no id.
	ErrEmptyProgramID = errors.New("catalog: empty program id")
	// ErrEmptyStatisticDate is returned when a statistic has no sdate.
	ErrEmptyStatisticDate = errors.New("catalog: empty sdate")
)
