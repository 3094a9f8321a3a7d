package cmf

import "errors"

var (
	ErrInvalidMagic     = errors.New("invalid CMF magic")
	ErrUnsupportedMajor = errors.New("unsupported CMF major version")
	ErrCorruptFile      = errors.New("corrupt CMF file")
	ErrMissingSection   = errors.New("missing CMF section")
	ErrInvalidModel     = errors.New("invalid compiled model")
)
